package handler

import "github.com/google/wire"

// ProviderSet HTTP Handler ProviderSet
var ProviderSet = wire.NewSet(
	NewChatHandler,
	NewChatWSHandler,
	NewIngestHandler,
	NewHealthHandler,
)
