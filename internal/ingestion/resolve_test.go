package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolver(t *testing.T) {
	t.Parallel()

	r := newResolver([]string{
		"app/main.py",
		"app/models/__init__.py",
		"app/models/user.py",
		"app/services/auth.py",
		"pkg/__init__.py",
		"src/api/client.ts",
		"src/api/index.ts",
		"src/components/Button.tsx",
		"src/hooks/useAuth.js",
		"src/util.mjs",
		"web/index.js",
	})

	tests := []struct {
		name   string
		module string
		from   string
		want   string
	}{
		{"JSSibling", "./client", "src/api/index.ts", "src/api/client.ts"},
		{"JSParent", "../hooks/useAuth", "src/api/client.ts", "src/hooks/useAuth.js"},
		{"JSDirectoryIndex", "./api", "src/app.ts", "src/api/index.ts"},
		{"JSExplicitExtension", "./components/Button.tsx", "src/app.ts", "src/components/Button.tsx"},
		{"JSModuleExtension", "./util", "src/app.ts", "src/util.mjs"},
		{"JSEscapesRoot", "../../outside", "web/index.js", ""},
		{"JSMissing", "./missing", "src/app.ts", ""},
		{"PythonRelativeSibling", ".user", "app/models/admin.py", "app/models/user.py"},
		{"PythonRelativeParent", "..services.auth", "app/models/user.py", "app/services/auth.py"},
		{"PythonRelativePackage", ".models", "app/main.py", "app/models/__init__.py"},
		{"PythonCurrentPackage", ".", "app/models/user.py", "app/models/__init__.py"},
		{"PythonEscapesRoot", "...x", "app/main.py", ""},
		{"Dotted", "app.services.auth", "app/main.py", "app/services/auth.py"},
		{"DottedPackage", "pkg", "app/main.py", "pkg/__init__.py"},
		{"DottedMissing", "requests", "app/main.py", ""},
		{"BarePackage", "react", "src/app.ts", ""},
		{"Empty", "", "src/app.ts", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := r.resolve(tt.module, tt.from)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want != "", ok)
		})
	}
}
