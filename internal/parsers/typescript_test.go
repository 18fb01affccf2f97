package parsers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rHedBull/prism/internal/graph"
)

const notificationsSource = `import React, { useState as useS } from 'react';
import * as api from './api';
import './styles.css';
export { helper } from './helpers';
const fs = require('fs');
const { readFile, join: j } = require('./io');

export interface Props {
  limit: number;
}

type Id = string;

export function useNotifications(limit: number, opts?: Opts) {
  if (limit > 0 && opts) {
    for (const x of opts.items) {
      api.fetch(x);
    }
  }
  return limit ? 1 : 0;
}

export const useUnreadCount = (...args) => {
  const n = useNotifications(args.length);
  this.refresh();
  return n;
};

const single = x => x;

@Component({})
class Widget extends Base implements Renderable {
  render() {
    return helper();
  }
}
`

func TestTypeScriptParser_Parse(t *testing.T) {
	t.Parallel()

	parser := NewTypeScriptParser(LangTypeScript)
	result, err := parser.Parse(context.Background(), "src/hooks/notifications.ts", []byte(notificationsSource))
	require.NoError(t, err)

	t.Run("DeclarationOrder", func(t *testing.T) {
		t.Parallel()
		names := make([]string, 0, len(result.Decls))
		for _, d := range result.Decls {
			names = append(names, d.Name)
		}
		assert.Equal(t, []string{"Props", "Id", "useNotifications", "useUnreadCount", "single", "Widget"}, names)
	})

	t.Run("TypeDeclarations", func(t *testing.T) {
		t.Parallel()
		props := declByName(t, result.Decls, "Props")
		id := declByName(t, result.Decls, "Id")

		assert.Equal(t, graph.NodeInterface, props.Kind)
		assert.Equal(t, 8, props.StartLine)
		assert.Equal(t, 10, props.EndLine)
		assert.Equal(t, graph.NodeTypeAlias, id.Kind)
		assert.Equal(t, 12, id.StartLine)
	})

	t.Run("FunctionMetrics", func(t *testing.T) {
		t.Parallel()
		d := declByName(t, result.Decls, "useNotifications")

		assert.Equal(t, graph.NodeFunction, d.Kind)
		assert.Equal(t, 14, d.StartLine)
		assert.Equal(t, 21, d.EndLine)
		assert.Equal(t, 2, d.ParamCount)
		assert.Equal(t, 5, d.CyclomaticComplexity)
		assert.Equal(t, 2, d.MaxNesting)
		assert.Equal(t, []string{"fetch"}, d.Calls)
	})

	t.Run("ArrowFunction", func(t *testing.T) {
		t.Parallel()
		d := declByName(t, result.Decls, "useUnreadCount")

		assert.Equal(t, graph.NodeFunction, d.Kind)
		assert.Equal(t, 23, d.StartLine)
		assert.Equal(t, 27, d.EndLine)
		assert.Equal(t, 1, d.ParamCount)
		assert.Equal(t, 1, d.CyclomaticComplexity)
		assert.Equal(t, []string{"useNotifications"}, d.Calls)
	})

	t.Run("SingleParamArrow", func(t *testing.T) {
		t.Parallel()
		d := declByName(t, result.Decls, "single")

		assert.Equal(t, 1, d.ParamCount)
		assert.Equal(t, 1, d.CyclomaticComplexity)
		assert.Empty(t, d.Calls)
	})

	t.Run("Class", func(t *testing.T) {
		t.Parallel()
		d := declByName(t, result.Decls, "Widget")

		assert.Equal(t, graph.NodeClass, d.Kind)
		assert.Equal(t, []string{"Component"}, d.Decorators)
		assert.Equal(t, []string{"Base", "Renderable"}, d.Bases)
		assert.Equal(t, 1, d.CyclomaticComplexity)
	})

	t.Run("Imports", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []Import{
			{Module: "react", Names: []string{"React", "useS"}},
			{Module: "./api", Names: []string{"api"}},
			{Module: "./styles.css"},
			{Module: "./helpers"},
			{Module: "fs", Names: []string{"fs"}},
			{Module: "./io", Names: []string{"readFile", "j"}},
		}, result.Imports)
	})
}

func TestTypeScriptParser_Languages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("TSX", func(t *testing.T) {
		t.Parallel()
		src := "export const Badge = ({ count }) => <span>{count}</span>;\n"
		result, err := NewTypeScriptParser(LangTypeScriptReact).Parse(ctx, "Badge.tsx", []byte(src))
		require.NoError(t, err)

		assert.Equal(t, LangTypeScriptReact, result.Language)
		require.Len(t, result.Decls, 1)
		assert.Equal(t, "Badge", result.Decls[0].Name)
		assert.Equal(t, 1, result.Decls[0].ParamCount)
	})

	t.Run("JavaScriptFunctionExpression", func(t *testing.T) {
		t.Parallel()
		src := "var handler = function (req, res) {\n  return req.ok || res.fail();\n};\n"
		result, err := NewTypeScriptParser(LangJavaScript).Parse(ctx, "server.js", []byte(src))
		require.NoError(t, err)

		require.Len(t, result.Decls, 1)
		d := result.Decls[0]
		assert.Equal(t, "handler", d.Name)
		assert.Equal(t, 2, d.ParamCount)
		assert.Equal(t, 2, d.CyclomaticComplexity)
		assert.Equal(t, []string{"fail"}, d.Calls)
	})

	t.Run("NestedFunctionsNotExtracted", func(t *testing.T) {
		t.Parallel()
		src := "function outer() {\n  function inner() {}\n  const cb = () => inner();\n  return cb;\n}\n"
		result, err := NewTypeScriptParser(LangJavaScript).Parse(ctx, "a.js", []byte(src))
		require.NoError(t, err)

		require.Len(t, result.Decls, 1)
		assert.Equal(t, "outer", result.Decls[0].Name)
		assert.Equal(t, 1, result.Decls[0].MaxNesting)
	})

	t.Run("FunctionKeywordNotNested", func(t *testing.T) {
		t.Parallel()
		src := "function outer(a: boolean) {\n  function inner() {}\n  const f = function () {};\n  if (a) {}\n}\n"
		result, err := NewTypeScriptParser(LangTypeScript).Parse(ctx, "a.ts", []byte(src))
		require.NoError(t, err)

		require.Len(t, result.Decls, 1)
		assert.Equal(t, 1, result.Decls[0].MaxNesting)
	})

	t.Run("UnknownLanguageDefaultsToTypeScript", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, LangTypeScript, NewTypeScriptParser("").Language())
	})
}
