package api

import (
	"github.com/rs/zerolog/hlog"
	"github.com/skybi/impds-proxy/internal/api/schema"
	"github.com/skybi/impds-proxy/internal/api/validation"
	"github.com/skybi/impds-proxy/internal/beneficiary"
	"github.com/skybi/impds-proxy/internal/search"
	"net/http"
)

const maxIdentifierLength = 64

type searchRequest struct {
	Aadhaar *string `json:"aadhaar" required:"true" max_length:"64"`
	Type    *string `json:"type" max_length:"8"`
}

type searchResponse struct {
	Success  bool                  `json:"success"`
	Count    int                   `json:"count"`
	Results  []*beneficiary.Record `json:"results"`
	SearchID string                `json:"search_id"`
	Cached   bool                  `json:"cached"`
}

// EndpointSearch handles the 'GET /search?aadhaar={string}&type={string?:A}' endpoint
func (service *Service) EndpointSearch(writer http.ResponseWriter, request *http.Request) {
	identifier, validationErr := validation.QueryString(request, "aadhaar", false, maxIdentifierLength)
	if validationErr != nil {
		service.writer.WriteErrors(writer, http.StatusBadRequest, validationErr)
		return
	}
	if identifier == "" {
		service.writer.WriteErrors(writer, http.StatusBadRequest, schema.ErrIdentifierMissing)
		return
	}
	searchType := request.URL.Query().Get("type")

	service.search(writer, request, identifier, searchType)
}

// EndpointSearchBody handles the 'POST /search' endpoint accepting '{"aadhaar": string, "type": string?}'
func (service *Service) EndpointSearchBody(writer http.ResponseWriter, request *http.Request) {
	body, validationErrs, err := schema.UnmarshalBody[searchRequest](request)
	if err != nil {
		service.writer.WriteInternalError(writer, err)
		return
	}
	if len(validationErrs) > 0 {
		service.writer.WriteErrors(writer, http.StatusBadRequest, validationErrs...)
		return
	}
	if *body.Aadhaar == "" {
		service.writer.WriteErrors(writer, http.StatusBadRequest, schema.ErrIdentifierMissing)
		return
	}
	searchType := ""
	if body.Type != nil {
		searchType = *body.Type
	}

	service.search(writer, request, *body.Aadhaar, searchType)
}

func (service *Service) search(writer http.ResponseWriter, request *http.Request, identifier, searchType string) {
	result, err := service.Searches.Search(request.Context(), identifier, searchType)
	if err != nil {
		service.writeSearchError(writer, request, err)
		return
	}

	records := result.Records
	if records == nil {
		records = []*beneficiary.Record{}
	}
	service.writer.WriteJSON(writer, &searchResponse{
		Success:  true,
		Count:    len(records),
		Results:  records,
		SearchID: result.ID.String(),
		Cached:   result.Cached,
	})
}

func (service *Service) writeSearchError(writer http.ResponseWriter, request *http.Request, err error) {
	kind := search.Kind(err)
	details := map[string]any{
		"kind":      string(kind),
		"retryable": kind.Retryable(),
	}

	switch kind {
	case search.KindInvalidIdentifier:
		service.writer.WriteErrors(writer, http.StatusBadRequest, schema.ErrIdentifierInvalid.WithDetails(details))
	case search.KindInvalidSearchType:
		service.writer.WriteErrors(writer, http.StatusBadRequest, schema.ErrSearchTypeInvalid.WithDetails(details))
	case search.KindNoDataFound:
		service.writer.WriteErrors(writer, http.StatusNotFound, schema.ErrNoDataFound)
	case search.KindSessionExpired:
		service.writer.WriteErrors(writer, http.StatusInternalServerError, schema.ErrSessionExpired.WithDetails(details))
	case search.KindSessionTimeout, search.KindSessionAcquisitionError, search.KindSessionFormatError:
		service.writer.WriteErrors(writer, http.StatusInternalServerError, schema.ErrSessionUnavailable.WithDetails(details))
	case search.KindParseError:
		service.writer.WriteErrors(writer, http.StatusInternalServerError, schema.ErrUnexpectedPortalResponse.WithDetails(details))
	case search.KindPortalUnavailable:
		service.writer.WriteErrors(writer, http.StatusServiceUnavailable, schema.ErrPortalUnavailable.WithDetails(details))
	default:
		hlog.FromRequest(request).Error().Err(err).Msg("search failed unexpectedly")
		service.writer.WriteInternalError(writer, err)
	}
}
