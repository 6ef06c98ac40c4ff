package infrastructure

import (
	"github.com/google/wire"

	"github.com/docschat/backend/internal/infrastructure/config"
	"github.com/docschat/backend/internal/infrastructure/embedding"
	"github.com/docschat/backend/internal/infrastructure/llm"
	"github.com/docschat/backend/internal/infrastructure/storage"
	"github.com/docschat/backend/internal/infrastructure/vector"
)

// ProviderSet Infrastructure 层总 ProviderSet
var ProviderSet = wire.NewSet(
	config.ProviderSet,
	storage.ProviderSet,
	embedding.ProviderSet,
	llm.ProviderSet,
	vector.ProviderSet,
)
