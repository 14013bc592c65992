package api

import (
	"github.com/skybi/impds-proxy/internal/api/schema"
	"github.com/skybi/impds-proxy/internal/api/validation"
	"net/http"
)

const maxCodecTextLength = 4096

type encryptResponse struct {
	Success   bool   `json:"success"`
	Original  string `json:"original"`
	Encrypted string `json:"encrypted"`
}

type decryptResponse struct {
	Success   bool   `json:"success"`
	Encrypted string `json:"encrypted"`
	Decrypted string `json:"decrypted"`
}

// EndpointEncrypt handles the 'GET /encrypt?text={string}' endpoint
func (service *Service) EndpointEncrypt(writer http.ResponseWriter, request *http.Request) {
	text, validationErr := service.codecText(request)
	if validationErr != nil {
		service.writer.WriteErrors(writer, http.StatusBadRequest, validationErr)
		return
	}

	encrypted, err := service.Codec.Encrypt(text)
	if err != nil {
		service.writer.WriteInternalError(writer, err)
		return
	}
	service.writer.WriteJSON(writer, &encryptResponse{
		Success:   true,
		Original:  text,
		Encrypted: encrypted,
	})
}

// EndpointDecrypt handles the 'GET /decrypt?text={string}' endpoint
func (service *Service) EndpointDecrypt(writer http.ResponseWriter, request *http.Request) {
	text, validationErr := service.codecText(request)
	if validationErr != nil {
		service.writer.WriteErrors(writer, http.StatusBadRequest, validationErr)
		return
	}

	decrypted, err := service.Codec.Decrypt(text)
	if err != nil {
		service.writer.WriteErrors(writer, http.StatusBadRequest, schema.ErrCiphertextInvalid)
		return
	}
	service.writer.WriteJSON(writer, &decryptResponse{
		Success:   true,
		Encrypted: text,
		Decrypted: decrypted,
	})
}

func (service *Service) codecText(request *http.Request) (string, *schema.Error) {
	text, validationErr := validation.QueryString(request, "text", false, maxCodecTextLength)
	if validationErr != nil {
		return "", validationErr
	}
	if text == "" {
		return "", schema.ErrTextMissing
	}
	return text, nil
}
