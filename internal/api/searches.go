package api

import (
	"github.com/skybi/impds-proxy/internal/api/schema"
	"github.com/skybi/impds-proxy/internal/api/validation"
	"github.com/skybi/impds-proxy/internal/searchlog"
	"math"
	"net/http"
)

// EndpointGetSearches handles the 'GET /searches?outcome={string?}&before={timestamp?}&after={timestamp?}&offset={number?:0}&limit={number?:10}' endpoint
func (service *Service) EndpointGetSearches(writer http.ResponseWriter, request *http.Request) {
	var validationErrs []*schema.Error

	outcome, validationErr := validation.QueryEnum(request, "outcome", searchlog.ParseOutcome)
	if validationErr != nil {
		validationErrs = append(validationErrs, validationErr)
	}

	before, validationErr := validation.QueryNumber(request, "before", false, -1, 0, math.MaxInt64)
	if validationErr != nil {
		validationErrs = append(validationErrs, validationErr)
	}

	after, validationErr := validation.QueryNumber(request, "after", false, -1, 0, math.MaxInt64)
	if validationErr != nil {
		validationErrs = append(validationErrs, validationErr)
	}

	offset, validationErr := validation.QueryNumber(request, "offset", false, 0, 0, math.MaxInt64)
	if validationErr != nil {
		validationErrs = append(validationErrs, validationErr)
	}

	limit, validationErr := validation.QueryNumber(request, "limit", false, searchlog.DefaultLimit, 1, 100)
	if validationErr != nil {
		validationErrs = append(validationErrs, validationErr)
	}

	if len(validationErrs) > 0 {
		service.writer.WriteErrors(writer, http.StatusBadRequest, validationErrs...)
		return
	}

	filter := &searchlog.Filter{Outcome: outcome}
	if before > 0 {
		filter.CreatedBefore = &before
	}
	if after > 0 {
		filter.CreatedAfter = &after
	}

	entries, n, err := service.Storage.Searches().GetByFilter(request.Context(), filter, uint64(offset), uint64(limit))
	if err != nil {
		service.writer.WriteInternalError(writer, err)
		return
	}

	service.writer.WriteJSON(writer, schema.BuildPaginatedResponse(uint64(offset), uint64(limit), n, entries))
}
