package rest

import (
	"errors"

	"wisdom-backend/infrastructure/graphdb"
	apperrors "wisdom-backend/pkg/errors"
)

// ClassifyGraphError maps graph query failures onto stable API categories.
// Driver messages never reach the client; the cause stays on the AppError
// for logging.
func ClassifyGraphError(err error) *apperrors.AppError {
	var qe *graphdb.QueryError
	var ce *graphdb.ConnectError
	if !errors.As(err, &qe) && !errors.As(err, &ce) {
		return nil
	}

	switch graphdb.KindOf(err) {
	case graphdb.KindUnavailable, graphdb.KindTransient:
		return apperrors.NewUnavailable("Graph database temporarily unavailable", err).WithCode("GRAPH_UNAVAILABLE")
	case graphdb.KindSessionExpired:
		return apperrors.NewUnavailable("Graph database session expired, please retry", err).WithCode("GRAPH_SESSION_EXPIRED")
	case graphdb.KindAuth:
		return apperrors.NewExternal("Graph database rejected the service credentials", err).WithCode("GRAPH_AUTH")
	case graphdb.KindSyntax:
		return apperrors.NewInternal("Graph query is invalid", err).WithCode("GRAPH_QUERY_INVALID")
	default:
		return apperrors.NewInternal("Graph query failed", err).WithCode("GRAPH_QUERY_FAILED")
	}
}
