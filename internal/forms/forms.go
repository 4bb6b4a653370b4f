// Package forms submits multipart forms to the escrow API.
package forms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/Veraticus/escrow-client/internal/common"
	"github.com/Veraticus/escrow-client/internal/escrow"
	"github.com/Veraticus/escrow-client/internal/model"
	"github.com/Veraticus/escrow-client/internal/upload"
)

const defaultSuccessMessage = "Action effectuée avec succès"

// DisputeEvidenceAccept is the accept list of dispute evidence files.
const DisputeEvidenceAccept = "image/*,application/pdf"

// Doer issues API requests. *escrow.Client implements it.
type Doer interface {
	Do(ctx context.Context, method, path string, out any, opts ...escrow.RequestOption) (*escrow.Envelope, error)
}

// FileField is a file attached to a form field.
type FileField struct {
	Field string
	File  upload.File
}

// Form is a form to submit. Method defaults to POST.
type Form struct {
	Fields   map[string]string
	Action   string
	Method   string
	Redirect string
	Files    []FileField
}

// Next says what the caller does once a submission succeeds.
type Next int

// Follow-ups.
const (
	NextReload Next = iota
	NextRedirect
)

// Result is a successful submission.
type Result struct {
	Message string
	Target  string
	Data    json.RawMessage
	Next    Next
}

// Submit sends the form as multipart/form-data. On success the result
// names either the redirect target or a reload.
func Submit(ctx context.Context, d Doer, form Form) (*Result, error) {
	method := strings.ToUpper(form.Method)
	if method == "" {
		method = http.MethodPost
	}

	body, contentType, err := encode(form)
	if err != nil {
		return nil, err
	}

	var data json.RawMessage
	env, err := d.Do(ctx, method, form.Action, &data,
		escrow.WithBody(body),
		escrow.WithHeader("Content-Type", contentType))
	if err != nil {
		return nil, common.NewUserError("Erreur lors de l'envoi: "+err.Error(), err)
	}

	result := &Result{Message: env.Message, Data: data}
	if result.Message == "" {
		result.Message = defaultSuccessMessage
	}
	if form.Redirect != "" {
		result.Next = NextRedirect
		result.Target = form.Redirect
	}
	return result, nil
}

func encode(form Form) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(form.Fields))
	for k := range form.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, form.Fields[k]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}

	for _, ff := range form.Files {
		if err := writeFile(mw, ff); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func writeFile(mw *multipart.Writer, ff FileField) error {
	rc, err := ff.File.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", ff.File.Name, err)
	}
	defer func() { _ = rc.Close() }()

	part, err := mw.CreateFormFile(ff.Field, ff.File.Name)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", ff.File.Name, err)
	}
	if _, err := io.Copy(part, rc); err != nil {
		return fmt.Errorf("failed to copy %s: %w", ff.File.Name, err)
	}
	return nil
}

// DisputeRequest opens a dispute on a transaction.
type DisputeRequest struct {
	Reason        string
	Description   string
	Evidence      []upload.File
	TransactionID int64
}

// OpenDispute checks the evidence files and submits the dispute form. On
// success the result redirects to the new dispute.
func OpenDispute(ctx context.Context, d Doer, req DisputeRequest) (*Result, *model.Dispute, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, nil, common.NewUserError("Le motif du litige est requis", nil)
	}

	form := Form{
		Action: escrow.PathDisputes,
		Method: http.MethodPost,
		Fields: map[string]string{
			"transaction": strconv.FormatInt(req.TransactionID, 10),
			"reason":      req.Reason,
			"description": req.Description,
		},
	}
	for _, file := range req.Evidence {
		if err := upload.Accept(file, DisputeEvidenceAccept); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", file.Name, err)
		}
		form.Files = append(form.Files, FileField{Field: "evidence", File: file})
	}

	result, err := Submit(ctx, d, form)
	if err != nil {
		return nil, nil, err
	}

	var dispute model.Dispute
	if len(result.Data) > 0 {
		if err := json.Unmarshal(result.Data, &dispute); err != nil {
			return nil, nil, fmt.Errorf("failed to decode dispute: %w", err)
		}
	}
	if dispute.ID != 0 {
		result.Next = NextRedirect
		result.Target = escrow.DisputePath(dispute.ID)
	}
	return result, &dispute, nil
}
