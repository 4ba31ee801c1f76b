//go:build !milvus

package backend

import (
	"github.com/mentis-ai/mentis/internal/backend/store"
	"github.com/mentis-ai/mentis/internal/backend/store/qdrant"
	"github.com/mentis-ai/mentis/internal/pkg/textsplit"
	"github.com/mentis-ai/mentis/pkg/embedding"
	"github.com/mentis-ai/mentis/pkg/errors"
)

// newVectorIndex builds the Qdrant driver. The Qdrant and Milvus
// clients both register a proto file named common.proto, and linking
// them into one binary panics at init, so each build carries exactly
// one driver: the default build this one, `-tags milvus` the other.
func newVectorIndex(opts *StoreOptions, embedder *embedding.Service, splitter *textsplit.Splitter) (store.VectorIndex, error) {
	if opts.Driver == StoreDriverMilvus {
		return nil, errors.ErrConfiguration.WithMessage("milvus driver is not part of this build, rebuild with -tags milvus")
	}
	return qdrant.New(qdrant.Config{
		URL:        opts.Qdrant.URL,
		APIKey:     opts.Qdrant.APIKey,
		Collection: opts.Collection,
	}, embedder, splitter)
}
