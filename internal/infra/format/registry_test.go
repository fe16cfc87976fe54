package format

import (
	"testing"

	"github.com/stretchr/testify/require"

	"docmcp/internal/domain"
)

func TestResolve_AllRegisteredPairs(t *testing.T) {
	r := NewRegistry()
	for _, spec := range builtinSpecs {
		dirs := []domain.FormatDirection{domain.DirectionImport, domain.DirectionExport}
		for _, dir := range dirs {
			got, err := r.Resolve(spec.LogicalName, dir)
			if spec.Allows(dir) {
				require.NoError(t, err, "%s/%s", spec.LogicalName, dir)
				require.Equal(t, spec.EngineFilterID, got.EngineFilterID)
			} else {
				require.ErrorIs(t, err, domain.ErrUnsupportedFormat, "%s/%s", spec.LogicalName, dir)
			}
		}
	}
}

func TestResolve_UnknownFormat(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("wpd", domain.DirectionImport)
	require.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	code, ok := domain.CodeFrom(err)
	require.True(t, ok)
	require.Equal(t, domain.CodeUnsupportedFormat, code)
}

func TestResolve_DirectionRestricted(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve("pdf", domain.DirectionExport)
	require.NoError(t, err)

	_, err = r.Resolve("pdf", domain.DirectionImport)
	require.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestNames_SortedAndFiltered(t *testing.T) {
	r := NewRegistry()
	names := r.Names(domain.DirectionExport)
	require.Contains(t, names, "pdf")
	require.Contains(t, names, "odt")
	require.IsIncreasing(t, names)

	importNames := r.Names(domain.DirectionImport)
	require.NotContains(t, importNames, "pdf")
}

func TestExtensionFor(t *testing.T) {
	require.Equal(t, ".odt", ExtensionFor(domain.KindWriter))
	require.Equal(t, ".ods", ExtensionFor(domain.KindCalc))
	require.Equal(t, ".odp", ExtensionFor(domain.KindImpress))
	require.Equal(t, ".odg", ExtensionFor(domain.KindDraw))
	require.Empty(t, ExtensionFor(domain.DocKind("base")))
}
