//go:build milvus

package backend

import (
	"github.com/mentis-ai/mentis/internal/backend/store"
	storemilvus "github.com/mentis-ai/mentis/internal/backend/store/milvus"
	"github.com/mentis-ai/mentis/internal/pkg/textsplit"
	"github.com/mentis-ai/mentis/pkg/component/milvus"
	"github.com/mentis-ai/mentis/pkg/embedding"
	"github.com/mentis-ai/mentis/pkg/errors"
)

// newVectorIndex builds the Milvus driver. The Qdrant and Milvus
// clients both register a proto file named common.proto, and linking
// them into one binary panics at init, so each build carries exactly
// one driver: this one under `-tags milvus`, Qdrant otherwise.
func newVectorIndex(opts *StoreOptions, embedder *embedding.Service, splitter *textsplit.Splitter) (store.VectorIndex, error) {
	if opts.Driver != StoreDriverMilvus {
		return nil, errors.ErrConfiguration.WithMessage("this build carries only the milvus driver, set store.driver=milvus or rebuild without -tags milvus")
	}
	return storemilvus.New(storemilvus.Config{
		Client: &milvus.Config{
			Address:  opts.Milvus.Address,
			Database: opts.Milvus.Database,
			Username: opts.Milvus.Username,
			Password: opts.Milvus.Password,
			Timeout:  opts.Milvus.Timeout,
		},
		Collection: opts.Collection,
	}, embedder, splitter)
}
