package sqlite_test

import (
	"iter"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hkd-sync/internal/domain/entity"
	"github.com/jhoicas/hkd-sync/internal/domain/repository"
)

func repositoryFilter(unitID string) repository.Filter {
	return repository.Filter{BusinessUnitID: unitID}
}

func collectIDs(t *testing.T, seq iter.Seq2[entity.Document, error]) []string {
	t.Helper()
	var ids []string
	for d, err := range seq {
		require.NoError(t, err)
		ids = append(ids, d.ID)
	}
	return ids
}
