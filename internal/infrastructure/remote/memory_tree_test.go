package remote_test

import (
	"testing"

	"github.com/jhoicas/hkd-sync/internal/infrastructure/remote"
	"github.com/jhoicas/hkd-sync/internal/infrastructure/remote/remotetest"
)

func TestMemoryTree_Contrato(t *testing.T) {
	remotetest.RunTreeContract(t, func(*testing.T) remote.Tree { return remote.NewMemoryTree() })
}
