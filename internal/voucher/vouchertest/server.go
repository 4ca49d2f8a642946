// Package vouchertest provides an in-process fake of the remote voucher service.
package vouchertest

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"invoicesync/internal/model"
)

const (
	// BaseURL is the address clients should be pointed at.
	BaseURL  = "http://vouchers.test/v1"
	basePath = "/v1"
)

// File is an attachment received by the fake.
type File struct {
	VoucherID   string
	Type        string
	Filename    string
	ContentType string
	Content     []byte
}

// Server records every call and answers according to its knobs.
// Knobs must be set before the first request. Values handed out by fiber are
// only valid inside a handler, so everything recorded is cloned.
type Server struct {
	// APIKey is the only bearer key accepted. Empty accepts any key.
	APIKey string
	// Unauthorized makes the next N voucher posts answer 401 regardless of the key.
	Unauthorized int
	// RejectVouchers maps a voucher number to the status it is rejected with.
	RejectVouchers map[string]int
	// FileStatus overrides the 202 normally returned for attachments.
	FileStatus int

	app *fiber.App

	mu         sync.Mutex
	vouchers   []model.VoucherRequest
	ids        []string
	files      []File
	authHeader []string
}

// New builds a fake with all routes registered.
func New() *Server {
	s := &Server{RejectVouchers: map[string]int{}}
	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return writeError(c, code, err.Error())
		},
	})
	api := s.app.Group(basePath)
	api.Post("/vouchers", s.createVoucher)
	api.Post("/vouchers/:id/files", s.uploadFile)
	return s
}

// Transport routes client requests straight into the fiber app.
func (s *Server) Transport() http.RoundTripper {
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return s.app.Test(req, -1)
	})
}

// Client returns an http.Client using Transport.
func (s *Server) Client() *http.Client {
	return &http.Client{Transport: s.Transport()}
}

// Vouchers returns the accepted voucher bodies in arrival order.
func (s *Server) Vouchers() []model.VoucherRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.VoucherRequest(nil), s.vouchers...)
}

// VoucherIDs returns the ids handed out, parallel to Vouchers.
func (s *Server) VoucherIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}

// Files returns every attachment post, accepted or not.
func (s *Server) Files() []File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]File(nil), s.files...)
}

// VoucherPosts counts POST /vouchers requests, including refused ones.
func (s *Server) VoucherPosts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.authHeader)
}

func (s *Server) authorized(c *fiber.Ctx) bool {
	if s.APIKey == "" {
		return true
	}
	return c.Get(fiber.HeaderAuthorization) == "Bearer "+s.APIKey
}

func (s *Server) createVoucher(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.authHeader = append(s.authHeader, strings.Clone(c.Get(fiber.HeaderAuthorization)))
	if s.Unauthorized > 0 {
		s.Unauthorized--
		return writeError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	if !s.authorized(c) {
		return writeError(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var body model.VoucherRequest
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return writeError(c, fiber.StatusBadRequest, "malformed voucher")
	}
	if status, ok := s.RejectVouchers[body.VoucherNumber]; ok {
		return writeError(c, status, "voucherNumber "+body.VoucherNumber+" rejected")
	}

	id := uuid.NewString()
	s.vouchers = append(s.vouchers, body)
	s.ids = append(s.ids, id)

	return c.Status(fiber.StatusCreated).JSON(model.VoucherCreated{
		ID:          id,
		ResourceURI: c.BaseURL() + basePath + "/vouchers/" + id,
		Version:     1,
	})
}

func (s *Server) uploadFile(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.authorized(c) {
		return writeError(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "cannot open uploaded file")
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "cannot read uploaded file")
	}

	id := strings.Clone(c.Params("id"))
	s.files = append(s.files, File{
		VoucherID:   id,
		Type:        strings.Clone(c.FormValue("type")),
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Content:     content,
	})

	if s.FileStatus != 0 {
		return writeError(c, s.FileStatus, "file refused")
	}
	if !s.knownLocked(id) {
		return writeError(c, fiber.StatusNotFound, "voucher not found")
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": uuid.NewString()})
}

func (s *Server) knownLocked(id string) bool {
	for _, known := range s.ids {
		if strings.EqualFold(known, id) {
			return true
		}
	}
	return false
}

// writeError answers with the remote's error envelope.
func writeError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(model.RemoteError{Error: http.StatusText(status), Message: message})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }
