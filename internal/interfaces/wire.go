package interfaces

import (
	"github.com/google/wire"

	"github.com/docschat/backend/internal/interfaces/http"
	"github.com/docschat/backend/internal/interfaces/mcp"
)

// ProviderSet Interfaces 层总 ProviderSet
var ProviderSet = wire.NewSet(
	http.ProviderSet,
	mcp.ProviderSet,
)
