package cfgbuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covergen/covergen/internal/ast"
)

const guardSource = `public class Guard {
    public int f(int x) {
        if (x > 0) {
            return 1;
        }
        return 0;
    }
}`

const loopSource = `public class Summer {
    public int sumEven(int[] values) {
        int total = 0;
        for (int i = 0; i < values.length; i++) {
            if (values[i] % 2 == 0) {
                total = total + values[i];
            }
        }
        return total;
    }
}`

const throwSource = `public class Risky {
    public int handle(String input) {
        try {
            if (input == null) {
                throw new IllegalArgumentException("null input");
            }
            return input.length();
        } catch (IllegalArgumentException e) {
            return -1;
        }
    }
}`

const trivialSource = `public class Bean {
    private int total;

    public int getTotal() {
        return total;
    }

    public void setTotal(int t) {
        total = t;
    }

    private int hidden(int x) {
        if (x > 0) {
            return 1;
        }
        return 0;
    }

    public static void main(String[] args) {
        System.out.println("hi");
    }
}`

func parse(t *testing.T, src string) *ast.ParsedUnit {
	t.Helper()
	unit, err := ast.NewHeuristicFrontEnd().Parse(ast.SourceUnit{Text: src, Language: "java"})
	require.NoError(t, err)
	return unit
}

func buildOne(t *testing.T, src, method string) *MethodCFG {
	t.Helper()
	unit := parse(t, src)
	cfgs, _ := NewBuilder(unit).BuildAll()
	for _, c := range cfgs {
		if c.Name == method {
			return c
		}
	}
	t.Fatalf("method %s not built", method)
	return nil
}

func TestComplexityIdentity(t *testing.T) {
	for _, tc := range []struct {
		src, method string
	}{
		{guardSource, "f"},
		{loopSource, "sumEven"},
		{throwSource, "handle"},
	} {
		cfg := buildOne(t, tc.src, tc.method)
		assert.Equal(t, len(cfg.Edges)-len(cfg.NodeIDs)+2, cfg.Complexity,
			"complexity identity violated for %s", tc.method)
	}
}

func TestGuardMethodComplexity(t *testing.T) {
	cfg := buildOne(t, guardSource, "f")
	assert.Equal(t, 2, cfg.Complexity)
}

func TestSyntheticExitIsFresh(t *testing.T) {
	unit := parse(t, loopSource)
	cfg := buildOne(t, loopSource, "sumEven")
	for _, n := range unit.Nodes {
		assert.NotEqual(t, n.NodeID, cfg.ExitID, "synthetic exit collides with front-end node")
	}
}

func TestEveryReturnReachesExit(t *testing.T) {
	cfg := buildOne(t, guardSource, "f")
	exitPreds := 0
	for _, e := range cfg.Edges {
		if e.Dst == cfg.ExitID {
			exitPreds++
		}
	}
	assert.GreaterOrEqual(t, exitPreds, 2, "both returns should feed the synthetic exit")
}

func TestThrowStitching(t *testing.T) {
	cfg := buildOne(t, throwSource, "handle")

	// The throw statement carries a catch_exception edge into the handler.
	found := false
	for _, e := range cfg.Edges {
		if e.Label == ast.EdgeCatchException {
			found = true
		}
	}
	assert.True(t, found, "expected a catch_exception edge from the throw site")
}

func TestTrivialAndPrivateMethodsExcluded(t *testing.T) {
	unit := parse(t, trivialSource)
	cfgs, _ := NewBuilder(unit).BuildAll()
	for _, c := range cfgs {
		assert.NotEqual(t, "getTotal", c.Name)
		assert.NotEqual(t, "setTotal", c.Name)
		assert.NotEqual(t, "hidden", c.Name)
		assert.NotEqual(t, "main", c.Name)
	}
}

func TestConnectedMethodHasNoUnreachableWarnings(t *testing.T) {
	cfg := buildOne(t, guardSource, "f")
	// The guard method is fully connected; no warnings expected.
	assert.Empty(t, cfg.Warnings)
}
