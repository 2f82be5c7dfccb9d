package service

import (
	"context"
	"fmt"

	"tagvalidate/internal/adapters/gerrit"
	"tagvalidate/internal/core/keymatch"
	perr "tagvalidate/internal/platform/errors"
	"tagvalidate/internal/platform/logger"

	dom "tagvalidate/internal/services/gerritverify/domain"
)

type stage string

const (
	stageRequest stage = "request"
	stageLocate  stage = "locate"
	stageAccount stage = "account"
	stageKeys    stage = "keys"
)

// fail stops the pipeline at st and records the error kind for err
func (s *Svc) fail(ctx context.Context, res dom.VerificationResult, st stage, err error) dom.VerificationResult {
	res.ErrorKind, res.StatusCode = classify(ctx, st, err)
	res.Reason = err.Error()
	res.KeyRegistered, res.Verified = false, false

	logger.C(ctx).Warn().
		Str("stage", string(st)).
		Str("error_kind", string(res.ErrorKind)).
		Int("status", res.StatusCode).
		Err(err).
		Msg("gerrit verification failed")
	return res
}

func classify(ctx context.Context, st stage, err error) (dom.ErrorKind, int) {
	if ctx.Err() != nil || perr.IsCanceled(err) {
		return dom.Cancelled, 0
	}
	status := gerrit.StatusOf(err)
	switch st {
	case stageRequest:
		return dom.InvalidRequest, 0
	case stageLocate:
		if perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
			return dom.InvalidRequest, 0
		}
		return dom.ServerNotFound, 0
	case stageAccount:
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return dom.AccountNotFound, 0
		}
		return dom.CommunicationFailed, status
	default:
		return dom.CommunicationFailed, status
	}
}

func notRegisteredReason(d keymatch.Detail) string {
	switch {
	case d.Matches > 1:
		return fmt.Sprintf("key matched %d registered keys, expected exactly one", d.Matches)
	case d.Invalid > 0:
		return "key is registered but expired, revoked or marked invalid"
	case d.Candidates == 0:
		return "account has no keys of this type"
	default:
		return fmt.Sprintf("key not among %d registered keys", d.Candidates)
	}
}
