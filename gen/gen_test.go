package gen

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/celer-lang/regalloc"
	"github.com/celer-lang/regalloc/regtext"
)

func TestGeneratorDeterministicPerSeed(t *testing.T) {
	cfg := DefaultConfig()
	for seed := int64(1); seed <= 10; seed++ {
		f1, ri1 := New(seed).Function(cfg)
		f2, ri2 := New(seed).Function(cfg)

		var a, b bytes.Buffer
		require.NoError(t, regtext.Print(&a, f1, ri1))
		require.NoError(t, regtext.Print(&b, f2, ri2))
		require.Equal(t, a.String(), b.String(), "seed %d", seed)
	}
}

func TestGeneratorSeedsDiffer(t *testing.T) {
	cfg := DefaultConfig()
	f1, ri1 := New(1).Function(cfg)
	f2, ri2 := New(2).Function(cfg)

	var a, b bytes.Buffer
	require.NoError(t, regtext.Print(&a, f1, ri1))
	require.NoError(t, regtext.Print(&b, f2, ri2))
	require.NotEqual(t, a.String(), b.String())
}

func TestGeneratorOutputValidates(t *testing.T) {
	cfg := DefaultConfig()
	for seed := int64(1); seed <= 20; seed++ {
		f, ri := New(seed).Function(cfg)
		require.NoError(t, regalloc.ValidateRegInfo(ri), "seed %d", seed)
		require.NoError(t, regalloc.ValidateFunction(f, ri), "seed %d", seed)
	}
}

func TestGeneratorProducesNoCriticalEdges(t *testing.T) {
	cfg := DefaultConfig()
	for seed := int64(1); seed <= 20; seed++ {
		f, _ := New(seed).Function(cfg)
		for _, b := range f.Blocks {
			if len(b.SuccIDs) < 2 {
				continue
			}
			for _, s := range b.SuccIDs {
				require.Len(t, f.Blocks[s].PredIDs, 1,
					"seed %d: edge b%d->b%d is critical", seed, b.Index, s)
			}
		}
	}
}

func TestGeneratorRegInfoShape(t *testing.T) {
	cfg := DefaultConfig()
	ri := New(1).RegInfo(cfg)
	require.Len(t, ri.Classes, cfg.Classes)
	for ci, c := range ri.Classes {
		require.Len(t, c.Regs, cfg.RegsPerClass, "class %d", ci)
	}
	// One pair template per two registers of each class.
	require.Len(t, ri.GroupDecls, cfg.Classes*(cfg.RegsPerClass/2))
}

func TestGeneratorSpecialRoles(t *testing.T) {
	cfg := DefaultConfig()
	f, _ := New(3).Function(cfg)

	for v := 0; v < cfg.StackVRegs; v++ {
		sawStack := false
		for _, b := range f.Blocks {
			for _, in := range b.Code {
				for _, d := range in.Ops {
					if d.VReg != regalloc.VReg(v) {
						continue
					}
					if d.Kind == "def" {
						require.True(t, d.Stack, "definition of stack v%d is not stack-constrained", v)
					}
					sawStack = sawStack || d.Stack
				}
			}
		}
		require.True(t, sawStack, "stack v%d has no stack operand", v)
	}
	for v := cfg.StackVRegs; v < cfg.StackVRegs+cfg.RematVRegs; v++ {
		require.NotNil(t, f.VRegs[v].Remat, "v%d should carry a remat descriptor", v)
	}
	require.Len(t, f.Groups, cfg.Groups)
}

func TestGeneratorTruncatesRolesToVRegCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VRegs = 4
	cfg.StackVRegs = 3
	cfg.RematVRegs = 3
	cfg.Groups = 3

	f, ri := New(7).Function(cfg)
	require.NoError(t, regalloc.ValidateFunction(f, ri))
	require.Len(t, f.VRegs, 4)
}
