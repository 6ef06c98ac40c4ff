package application

import (
	"github.com/google/wire"

	"github.com/docschat/backend/internal/application/chat"
	"github.com/docschat/backend/internal/application/ingest"
)

// ProviderSet Application 层总 ProviderSet
var ProviderSet = wire.NewSet(
	ingest.ProviderSet,
	chat.ProviderSet,
)
