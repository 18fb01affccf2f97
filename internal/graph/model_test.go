package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "dir:src/api", DirectoryID("src/api"))
	assert.Equal(t, "file:src/api/routes.py", FileID("src/api/routes.py"))
	assert.Equal(t, "func:a.py:login", FunctionID("a.py", "login"))
	assert.Equal(t, "class:a.ts:User", ClassID("a.ts", "User"))
	assert.Equal(t, "plan:payment_service", PlanID("Payment Service"))
}

func TestNewDirectoryNode(t *testing.T) {
	t.Parallel()

	t.Run("TopLevel", func(t *testing.T) {
		t.Parallel()
		n := NewDirectoryNode("src", "src", "", 1)

		assert.Equal(t, NodeDirectory, n.Type)
		assert.Nil(t, n.Parent)
		assert.Nil(t, n.Language)
		assert.Equal(t, "", n.ParentID())
	})

	t.Run("Nested", func(t *testing.T) {
		t.Parallel()
		n := NewDirectoryNode("src/api", "api", "dir:src", 2)

		assert.Equal(t, "dir:src", n.ParentID())
		assert.Equal(t, 2, n.AbstractionLevel)
	})
}

func TestNodeJSON(t *testing.T) {
	t.Parallel()

	t.Run("DirectoryHasNullLanguageAndParent", func(t *testing.T) {
		t.Parallel()
		data, err := json.Marshal(NewDirectoryNode("src", "src", "", 1))
		require.NoError(t, err)

		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		assert.Contains(t, m, "language")
		assert.Nil(t, m["language"])
		assert.Contains(t, m, "parent")
		assert.Nil(t, m["parent"])
		assert.NotContains(t, m, "export_count")
		assert.NotContains(t, m, "calls")
	})

	t.Run("FunctionFields", func(t *testing.T) {
		t.Parallel()
		n := NewFunctionNode("a.py", "login", "python", FunctionMetrics{
			StartLine: 3, EndLine: 9, LinesOfCode: 7, CyclomaticComplexity: 2, ParamCount: 1, MaxNesting: 1,
		}, []string{"check", "check"}, 1)
		data, err := json.Marshal(n)
		require.NoError(t, err)

		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		assert.Equal(t, "func:a.py:login", m["id"])
		assert.Equal(t, "file:a.py", m["parent"])
		assert.Equal(t, "python", m["language"])
		assert.EqualValues(t, 3, m["start_line"])
		assert.EqualValues(t, 2, m["cyclomatic_complexity"])
		assert.Equal(t, []any{"check", "check"}, m["calls"])
	})

	t.Run("RoundTrip", func(t *testing.T) {
		t.Parallel()
		n := NewFileNode("src/app.ts", "app.ts", "typescript", "dir:src", 40, 3, 3)
		data, err := json.Marshal(n)
		require.NoError(t, err)

		var back Node
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, n, back)
	})
}

func TestNewClassNode(t *testing.T) {
	t.Parallel()

	m := FunctionMetrics{StartLine: 1, EndLine: 4, LinesOfCode: 4, CyclomaticComplexity: 3, MaxNesting: 2}

	t.Run("ClassHasMetrics", func(t *testing.T) {
		t.Parallel()
		n := NewClassNode(NodeClass, "m.py", "User", "python", m, []string{"dataclass"}, []string{"Base"}, 0)

		require.NotNil(t, n.CyclomaticComplexity)
		assert.Equal(t, 3, *n.CyclomaticComplexity)
		assert.Equal(t, []string{"dataclass"}, n.Decorators)
		assert.Equal(t, []string{"Base"}, n.Bases)
	})

	t.Run("InterfaceHasNoMetrics", func(t *testing.T) {
		t.Parallel()
		n := NewClassNode(NodeInterface, "t.ts", "Props", "typescript", m, nil, nil, 0)

		assert.Equal(t, "class:t.ts:Props", n.ID)
		assert.Nil(t, n.CyclomaticComplexity)
		assert.Nil(t, n.MaxNesting)
		assert.True(t, n.IsDeclaration())
	})
}

func TestNewPlannedNode(t *testing.T) {
	t.Parallel()

	n := NewPlannedNode("PaymentService", "", 2)

	assert.Equal(t, "plan:paymentservice", n.ID)
	assert.Equal(t, NodeFile, n.Type)
	assert.Equal(t, "(planned)/PaymentService", n.FilePath)
	assert.Nil(t, n.Parent)
	assert.Nil(t, n.Language)
	assert.Equal(t, 0, n.LinesOfCode)
	require.NotNil(t, n.ExportCount)
	assert.Equal(t, 0, *n.ExportCount)
	assert.Equal(t, map[string]string{"source": "plan", "plan_name": "unnamed"}, n.Meta)
}
