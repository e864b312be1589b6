package telegram

import (
	"strings"

	"guildkeep/pkg/guildkeep"

	"github.com/gotd/td/tgerr"
)

// notFoundErrorTypes lists 400-class RPC error types meaning the target
// message or channel no longer exists or never did.
var notFoundErrorTypes = map[string]struct{}{
	"MESSAGE_ID_INVALID": {},
	"MSG_ID_INVALID":     {},
	"CHANNEL_INVALID":    {},
	"CHANNEL_PRIVATE":    {},
	"CHAT_ID_INVALID":    {},
	"PEER_ID_INVALID":    {},
	"USER_ID_INVALID":    {},
}

// forbiddenErrorTypes lists 400-class RPC error types meaning the bot lacks
// rights for the attempted operation.
var forbiddenErrorTypes = map[string]struct{}{
	"CHAT_WRITE_FORBIDDEN":     {},
	"CHAT_ADMIN_REQUIRED":      {},
	"MESSAGE_DELETE_FORBIDDEN": {},
	"MESSAGE_AUTHOR_REQUIRED":  {},
}

// mapChannelError classifies one gotd RPC failure into the channel taxonomy.
func mapChannelError(
	operation guildkeep.ChannelOperation,
	channelID string,
	err error,
) error {
	if err == nil {
		return nil
	}

	channelErr := &guildkeep.ChannelError{
		Operation: operation,
		Kind:      guildkeep.ChannelErrorKindUnknown,
		ChannelID: channelID,
		Cause:     err,
	}

	if retryAfter, ok := tgerr.AsFloodWait(err); ok {
		channelErr.Kind = guildkeep.ChannelErrorKindRateLimited
		channelErr.RetryAfter = retryAfter
		if rpcErr, hasRPC := tgerr.As(err); hasRPC {
			channelErr.Code = rpcErr.Code
			channelErr.Type = rpcErr.Type
		}

		return channelErr
	}

	rpcErr, ok := tgerr.As(err)
	if !ok {
		return channelErr
	}

	// Telegram rejects an edit whose text equals the current message. The
	// requested post-state already holds, so the operation succeeded.
	if rpcErr.Type == "MESSAGE_NOT_MODIFIED" {
		return nil
	}

	channelErr.Code = rpcErr.Code
	channelErr.Type = rpcErr.Type
	channelErr.Kind = classifyRPCError(rpcErr)

	return channelErr
}

func classifyRPCError(rpcErr *tgerr.Error) guildkeep.ChannelErrorKind {
	if rpcErr == nil {
		return guildkeep.ChannelErrorKindUnknown
	}

	errorType := strings.ToUpper(strings.TrimSpace(rpcErr.Type))
	if rpcErr.Code == 420 || rpcErr.Code == 429 || strings.Contains(errorType, "FLOOD") {
		return guildkeep.ChannelErrorKindRateLimited
	}
	if _, exists := notFoundErrorTypes[errorType]; exists {
		return guildkeep.ChannelErrorKindNotFound
	}
	if _, exists := forbiddenErrorTypes[errorType]; exists {
		return guildkeep.ChannelErrorKindForbidden
	}

	switch rpcErr.Code {
	case 303:
		return guildkeep.ChannelErrorKindTemporary
	case 401, 403:
		return guildkeep.ChannelErrorKindForbidden
	case 404:
		return guildkeep.ChannelErrorKindNotFound
	case 500, 501, 502, 503, 504:
		return guildkeep.ChannelErrorKindTemporary
	}
	if rpcErr.Code >= 500 {
		return guildkeep.ChannelErrorKindTemporary
	}

	return guildkeep.ChannelErrorKindUnknown
}
