package llmgateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wellFormedReply = "```yaml\n" + `language: java
new_tests:
- test_name: testPositive
  test_behavior: returns 1 for positive input
  test_code: |-
    @Test
    public void testPositive() {
        assertEquals(1, new Guard().f(5));
    }
  new_imports_code: |-
    import org.junit.Test;
` + "```"

func TestParseWellFormedReply(t *testing.T) {
	tests := ParseNewTests(wellFormedReply)
	require.Len(t, tests, 1)
	assert.Equal(t, "testPositive", tests[0].TestName)
	assert.Contains(t, tests[0].TestCode, "assertEquals(1")
	assert.Contains(t, tests[0].NewImportsCode, "import org.junit.Test;")
}

func TestParseReplyWithoutFences(t *testing.T) {
	bare := `language: java
new_tests:
- test_name: testZero
  test_behavior: returns 0 at the boundary
  test_code: |-
    @Test
    public void testZero() {
        assertEquals(0, new Guard().f(0));
    }
  new_imports_code: ""
`
	tests := ParseNewTests(bare)
	require.Len(t, tests, 1)
	assert.Equal(t, "testZero", tests[0].TestName)
}

func TestParseReplyWithSurroundingProse(t *testing.T) {
	prose := "Sure! Here are the tests you asked for:\n\n```yaml\n" + `language: java
new_tests:
- test_name: testNegative
  test_behavior: covers the false branch
  test_code: |-
    @Test
    public void testNegative() {
        assertEquals(0, new Guard().f(-3));
    }
` + "```\nLet me know if you need more."
	tests := ParseNewTests(prose)
	require.Len(t, tests, 1)
	assert.Equal(t, "testNegative", tests[0].TestName)
}

func TestParseRecoverseMultilineCodeWithoutBlockScalar(t *testing.T) {
	// test_code emitted as a bare multiline value, the classic failure the
	// |- injection rung repairs.
	broken := `language: java
new_tests:
- test_name: testLoop
  test_behavior: enters the loop once
  test_code: @Test
    public void testLoop() {
        assertEquals(2, new Summer().sumEven(new int[]{2}));
    }
  new_imports_code: import org.junit.Test;
`
	tests := ParseNewTests(broken)
	require.Len(t, tests, 1)
	assert.Contains(t, tests[0].TestCode, "sumEven")
}

func TestParsePureProseYieldsEmptySet(t *testing.T) {
	assert.Empty(t, ParseNewTests("I could not generate any tests for this class, sorry."))
}

func TestParseEmptyReplyYieldsEmptySet(t *testing.T) {
	assert.Empty(t, ParseNewTests(""))
}

func TestParseDropsTestsWithoutCode(t *testing.T) {
	reply := `language: java
new_tests:
- test_name: ghost
  test_behavior: has no body
  test_code: ""
- test_name: real
  test_behavior: has a body
  test_code: |-
    @Test public void real() { assertTrue(true); }
`
	tests := ParseNewTests(reply)
	require.Len(t, tests, 1)
	assert.Equal(t, "real", tests[0].TestName)
}

func TestParseMissingFieldsDegradeToEmpty(t *testing.T) {
	reply := `language: java
new_tests:
- test_code: |-
    @Test public void bare() { assertTrue(true); }
`
	tests := ParseNewTests(reply)
	require.Len(t, tests, 1)
	assert.Empty(t, tests[0].TestName)
	assert.Empty(t, tests[0].NewImportsCode)
}

func TestParseTrailingGarbageRecovered(t *testing.T) {
	reply := `language: java
new_tests:
- test_name: testOk
  test_behavior: passes
  test_code: |-
    @Test public void testOk() { assertTrue(true); }

Hope this helps! Feel free to ask for more tests.
More prose: that: breaks: parsing entirely [
`
	tests := ParseNewTests(reply)
	require.Len(t, tests, 1)
	assert.Equal(t, "testOk", tests[0].TestName)
}

func TestParseFlowMappingReply(t *testing.T) {
	reply := `{language: java, new_tests: [{test_name: t, test_code: "assertTrue(true);"}]}`
	tests := ParseNewTests(reply)
	require.Len(t, tests, 1)
	assert.Equal(t, "t", tests[0].TestName)
}
