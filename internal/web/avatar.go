package web

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"

	"github.com/h2non/filetype"
)

// multipartOverhead is allowed on top of the avatar size for form framing.
const multipartOverhead = 64 << 10

type avatarResponse struct {
	Avatar string `json:"avatar"`
}

// handleAvatar turns an uploaded image into a data URI the page can put in
// the avatar field. The MIME type is sniffed from the content.
func (s *Server) handleAvatar(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.MaxAvatarBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	file, _, err := r.FormFile("avatar")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "avatar is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "missing avatar file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read avatar")
		return
	}
	if int64(len(data)) > limit {
		writeError(w, http.StatusRequestEntityTooLarge, "avatar is too large")
		return
	}

	uri, err := avatarDataURI(data)
	if err != nil {
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, avatarResponse{Avatar: uri})
}

var errNotImage = errors.New("avatar must be an image")

func avatarDataURI(data []byte) (string, error) {
	if !filetype.IsImage(data) {
		return "", errNotImage
	}
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return "", errNotImage
	}
	return "data:" + kind.MIME.Value + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
