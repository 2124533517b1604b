package redis

import (
	"context"
	"errors"

	redisv9 "github.com/redis/go-redis/v9"

	"taskdash/internal/pkg/errorsx"
)

// transientReplies are server error prefixes that clear up on their own
var transientReplies = []string{"LOADING", "TRYAGAIN", "BUSY", "CLUSTERDOWN", "MASTERDOWN", "READONLY"}

// Classify tags err as retryable or permanent. Server replies are permanent
// unless they report a transient condition; connection failures are retryable.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, redisv9.ErrClosed):
		return errorsx.WrapPermanent(err)
	}

	var reply redisv9.Error
	if errors.As(err, &reply) {
		for _, prefix := range transientReplies {
			if redisv9.HasErrorPrefix(err, prefix) {
				return errorsx.WrapRetryable(err)
			}
		}
		return errorsx.WrapPermanent(err)
	}
	return errorsx.WrapRetryable(err)
}
