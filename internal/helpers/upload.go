package helpers

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"khoomi-api-io/catalog/internal/common"
	"khoomi-api-io/catalog/pkg/errs"

	"github.com/gin-gonic/gin"
)

// FormImage reads the named image file of a multipart form into memory.
func FormImage(c *gin.Context, field string) (io.Reader, error) {
	if err := c.Request.ParseMultipartForm(common.MAX_IMAGE_SIZE); err != nil {
		return nil, errs.Wrap(err, errs.Validation, "failed to parse multipart form")
	}
	image, err := formImage(c, field)
	if err != nil {
		return nil, err
	}
	if image == nil {
		return nil, errs.E(errs.Validation, "%s file is required", field)
	}
	return image, nil
}

func formImage(c *gin.Context, field string) (io.Reader, error) {
	header, err := c.FormFile(field)
	if err == http.ErrMissingFile {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(err, errs.Validation, "invalid %s file", field)
	}
	if header.Size > common.MAX_IMAGE_SIZE {
		return nil, errs.E(errs.Validation, "%s exceeds %d bytes", field, common.MAX_IMAGE_SIZE)
	}

	file, err := header.Open()
	if err != nil {
		return nil, errs.Wrap(err, errs.Validation, "error opening %s file", field)
	}
	defer file.Close()

	// buffered so the upload can outlive the request's temp files
	data, err := io.ReadAll(io.LimitReader(file, common.MAX_IMAGE_SIZE+1))
	if err != nil {
		return nil, errs.Wrap(err, errs.Validation, "error reading %s file", field)
	}
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		return nil, errs.E(errs.Validation, "%s must be an image", field)
	}
	return bytes.NewReader(data), nil
}
