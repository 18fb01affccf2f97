package parsers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rHedBull/prism/internal/graph"
)

const accountSource = `import os
from .models import User, Order as O
from services.auth import authenticate_user

@dataclass
class Account(Base, mixins.Audit):
    def deposit(self, amount, *args, note=None, **kw):
        if amount > 0 and note:
            self.log(amount)
            authenticate_user(amount)
        for x in args:
            while True:
                break
        return helpers.fmt(amount)


def login(user):
    return authenticate_user(user)


handler = lambda a, b: a if b else login(a)
`

func declByName(t *testing.T, decls []Decl, name string) Decl {
	t.Helper()
	for _, d := range decls {
		if d.Name == name {
			return d
		}
	}
	require.Failf(t, "declaration not found", "%s", name)
	return Decl{}
}

func TestPythonParser_Parse(t *testing.T) {
	t.Parallel()

	parser := NewPythonParser()
	result, err := parser.Parse(context.Background(), "app/account.py", []byte(accountSource))
	require.NoError(t, err)

	t.Run("FileFields", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "app/account.py", result.FilePath)
		assert.Equal(t, LangPython, result.Language)
		assert.Equal(t, 22, result.LinesOfCode)
	})

	t.Run("DeclarationOrder", func(t *testing.T) {
		t.Parallel()
		names := make([]string, 0, len(result.Decls))
		for _, d := range result.Decls {
			names = append(names, d.Name)
		}
		assert.Equal(t, []string{"Account", "deposit", "login", "handler"}, names)
	})

	t.Run("Class", func(t *testing.T) {
		t.Parallel()
		d := declByName(t, result.Decls, "Account")

		assert.Equal(t, graph.NodeClass, d.Kind)
		assert.Equal(t, 6, d.StartLine)
		assert.Equal(t, 14, d.EndLine)
		assert.Equal(t, 9, d.LinesOfCode())
		assert.Equal(t, []string{"dataclass"}, d.Decorators)
		assert.Equal(t, []string{"Base", "mixins.Audit"}, d.Bases)
		assert.Empty(t, d.Calls)
	})

	t.Run("MethodMetrics", func(t *testing.T) {
		t.Parallel()
		d := declByName(t, result.Decls, "deposit")

		assert.Equal(t, graph.NodeFunction, d.Kind)
		assert.Equal(t, 7, d.StartLine)
		assert.Equal(t, 14, d.EndLine)
		assert.Equal(t, 5, d.ParamCount)
		assert.Equal(t, 5, d.CyclomaticComplexity)
		assert.Equal(t, 2, d.MaxNesting)
	})

	t.Run("CallsSkipSelfReceiver", func(t *testing.T) {
		t.Parallel()
		d := declByName(t, result.Decls, "deposit")

		assert.Equal(t, []string{"authenticate_user", "fmt"}, d.Calls)
		assert.NotContains(t, d.Calls, "log")
	})

	t.Run("PlainFunction", func(t *testing.T) {
		t.Parallel()
		d := declByName(t, result.Decls, "login")

		assert.Equal(t, 17, d.StartLine)
		assert.Equal(t, 18, d.EndLine)
		assert.Equal(t, 1, d.ParamCount)
		assert.Equal(t, 1, d.CyclomaticComplexity)
		assert.Equal(t, 0, d.MaxNesting)
		assert.Equal(t, []string{"authenticate_user"}, d.Calls)
	})

	t.Run("ModuleLevelLambda", func(t *testing.T) {
		t.Parallel()
		d := declByName(t, result.Decls, "handler")

		assert.Equal(t, graph.NodeFunction, d.Kind)
		assert.Equal(t, 21, d.StartLine)
		assert.Equal(t, 2, d.ParamCount)
		assert.Equal(t, 2, d.CyclomaticComplexity)
		assert.Equal(t, []string{"login"}, d.Calls)
	})

	t.Run("Imports", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []Import{
			{Module: "os"},
			{Module: ".models", Names: []string{"User", "O"}},
			{Module: "services.auth", Names: []string{"authenticate_user"}},
		}, result.Imports)
	})
}

func TestPythonParser_EdgeCases(t *testing.T) {
	t.Parallel()

	parser := NewPythonParser()
	ctx := context.Background()

	t.Run("EmptyFile", func(t *testing.T) {
		t.Parallel()
		result, err := parser.Parse(ctx, "empty.py", []byte(""))
		require.NoError(t, err)

		assert.Equal(t, 1, result.LinesOfCode)
		assert.Empty(t, result.Decls)
		assert.Empty(t, result.Imports)
	})

	t.Run("RelativePackageImport", func(t *testing.T) {
		t.Parallel()
		result, err := parser.Parse(ctx, "pkg/a.py", []byte("from . import utils\nfrom .. import core as c\n"))
		require.NoError(t, err)

		assert.Equal(t, []Import{
			{Module: ".", Names: []string{"utils"}},
			{Module: "..", Names: []string{"c"}},
		}, result.Imports)
	})

	t.Run("AliasedModuleImport", func(t *testing.T) {
		t.Parallel()
		result, err := parser.Parse(ctx, "a.py", []byte("import numpy as np\n"))
		require.NoError(t, err)

		assert.Equal(t, []Import{{Module: "numpy", Names: []string{"np"}}}, result.Imports)
	})

	t.Run("DuplicateCallsKept", func(t *testing.T) {
		t.Parallel()
		src := "def f():\n    g()\n    g()\n    cls.h()\n"
		result, err := parser.Parse(ctx, "a.py", []byte(src))
		require.NoError(t, err)
		require.Len(t, result.Decls, 1)

		assert.Equal(t, []string{"g", "g"}, result.Decls[0].Calls)
	})

	t.Run("NestedFunctionIncluded", func(t *testing.T) {
		t.Parallel()
		src := "def outer():\n    def inner():\n        pass\n    return inner()\n"
		result, err := parser.Parse(ctx, "a.py", []byte(src))
		require.NoError(t, err)
		require.Len(t, result.Decls, 2)

		assert.Equal(t, "outer", result.Decls[0].Name)
		assert.Equal(t, 1, result.Decls[0].MaxNesting)
		assert.Equal(t, "inner", result.Decls[1].Name)
	})
}

func TestForLanguage(t *testing.T) {
	t.Parallel()

	for _, lang := range []string{LangPython, LangTypeScript, LangTypeScriptReact, LangJavaScript, LangJavaScriptReact} {
		p, err := ForLanguage(lang)
		require.NoError(t, err, lang)
		assert.Equal(t, lang, p.Language())
	}

	_, err := ForLanguage("cobol")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}
