package integrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covergen/covergen/internal/llmgateway"
)

const testFile = `package com.example;

import org.junit.Test;
import static org.junit.Assert.*;

public class GuardTest {

    @Test
    public void placeholder() {
        assertTrue(true);
    }
}`

func TestComputeInsertion(t *testing.T) {
	meta, err := ComputeInsertion(testFile)
	require.NoError(t, err)

	assert.Equal(t, 4, meta.ImportsAfterLine, "last import is on line 4")
	assert.Equal(t, 8, meta.InsertTestsBeforeLine, "last method-like declaration starts at the @Test annotation")
	assert.Equal(t, 4, meta.Indent)
}

func TestComputeInsertionNoMethods(t *testing.T) {
	_, err := ComputeInsertion("package com.example;\n\npublic class Empty {\n}\n")
	assert.Error(t, err)
}

func TestInsertRoundTrip(t *testing.T) {
	// N lines + M test lines + K import lines in, N+M+K lines out.
	meta, err := ComputeInsertion(testFile)
	require.NoError(t, err)

	gen := llmgateway.GeneratedTest{
		TestName: "testNegative",
		TestCode: "@Test\npublic void testNegative() {\n    assertEquals(0, new Guard().f(-1));\n}",
		NewImportsCode: "import com.example.Guard;",
	}

	n := len(strings.Split(testFile, "\n"))
	m := len(strings.Split(gen.TestCode, "\n"))
	k := 1

	out, err := New(meta).Insert(testFile, gen)
	require.NoError(t, err)
	assert.Len(t, strings.Split(out, "\n"), n+m+k)
	assert.Contains(t, out, "import com.example.Guard;")
	assert.Contains(t, out, "    @Test\n    public void testNegative() {")
}

func TestInsertReindentsToDetectedIndent(t *testing.T) {
	meta, err := ComputeInsertion(testFile)
	require.NoError(t, err)

	gen := llmgateway.GeneratedTest{
		TestCode: "@Test\npublic void t() {\n    assertTrue(true);\n}",
	}
	out, err := New(meta).Insert(testFile, gen)
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	assert.Equal(t, "    @Test", lines[meta.InsertTestsBeforeLine-1],
		"inserted block lands at the original insertion line, re-indented")
	// Nested lines keep their extra depth on top of the indent.
	assert.Contains(t, out, "        assertTrue(true);")
}

func TestInsertSkipsDuplicateImports(t *testing.T) {
	meta, err := ComputeInsertion(testFile)
	require.NoError(t, err)

	gen := llmgateway.GeneratedTest{
		TestCode:       "@Test\npublic void t() { assertTrue(true); }",
		NewImportsCode: "import org.junit.Test;",
	}
	out, err := New(meta).Insert(testFile, gen)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "import org.junit.Test;"))
}

func TestSequentialInsertionsStayCoherent(t *testing.T) {
	meta, err := ComputeInsertion(testFile)
	require.NoError(t, err)
	it := New(meta)

	first := llmgateway.GeneratedTest{
		TestCode:       "@Test\npublic void a() { assertTrue(true); }",
		NewImportsCode: "import com.example.Guard;",
	}
	second := llmgateway.GeneratedTest{
		TestCode: "@Test\npublic void b() { assertTrue(true); }",
	}

	out, err := it.Insert(testFile, first)
	require.NoError(t, err)
	out, err = it.Insert(out, second)
	require.NoError(t, err)

	// Both tests land before the placeholder, in insertion order.
	ia := strings.Index(out, "public void a()")
	ib := strings.Index(out, "public void b()")
	ip := strings.Index(out, "public void placeholder()")
	require.True(t, ia > 0 && ib > 0 && ip > 0)
	assert.Less(t, ia, ib)
	assert.Less(t, ib, ip)
}

func TestInsertRejectsEmptyTestCode(t *testing.T) {
	meta, err := ComputeInsertion(testFile)
	require.NoError(t, err)
	_, err = New(meta).Insert(testFile, llmgateway.GeneratedTest{TestCode: "   "})
	assert.Error(t, err)
}
