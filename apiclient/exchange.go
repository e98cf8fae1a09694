package apiclient

import (
	"context"
	"net/http"
)

// retryState is the progress of one logical call through the refresh rule.
type retryState int

const (
	stateInitial         retryState = iota
	stateAwaitingRefresh            // first attempt got 401
	stateRetried                    // new bearer obtained, second attempt pending
	stateDone
)

func (s retryState) String() string {
	switch s {
	case stateInitial:
		return "initial"
	case stateAwaitingRefresh:
		return "awaiting_refresh"
	case stateRetried:
		return "retried"
	case stateDone:
		return "done"
	}
	return "unknown"
}

// sendFunc performs one HTTP attempt with the given bearer token.
type sendFunc func(ctx context.Context, bearer string) (*Response, error)

// renewFunc obtains a fresh access token or fails with ErrSessionExpired.
type renewFunc func(ctx context.Context) (string, error)

// exchange runs send under the single-retry rule: a 401 on the first attempt
// triggers one renew and one more send. Whatever the second attempt returns
// is final.
// trace, if set, observes every state entered.
func exchange(
	ctx context.Context,
	bearer string,
	send sendFunc,
	renew renewFunc,
	trace func(retryState),
) (*Response, error) {
	state := stateInitial
	var resp *Response

	for state != stateDone {
		switch state {
		case stateInitial, stateRetried:
			r, err := send(ctx, bearer)
			if err != nil {
				return nil, err
			}
			resp = r
			if state == stateInitial && r.StatusCode == http.StatusUnauthorized {
				state = stateAwaitingRefresh
			} else {
				state = stateDone
			}

		case stateAwaitingRefresh:
			token, err := renew(ctx)
			if err != nil {
				return nil, err
			}
			bearer = token
			state = stateRetried
		}

		if trace != nil {
			trace(state)
		}
	}

	return resp, nil
}
