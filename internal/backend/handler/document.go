package handler

import (
	"io"
	"mime/multipart"

	"github.com/gin-gonic/gin"

	"github.com/mentis-ai/mentis/internal/backend/biz"
	"github.com/mentis-ai/mentis/internal/model"
	"github.com/mentis-ai/mentis/pkg/errors"
	"github.com/mentis-ai/mentis/pkg/response"
)

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// UploadDocument accepts a PDF upload and indexes it page by page.
func (h *Handler) UploadDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Fail(c, errors.ErrInvalidParam.WithMessage("file is required"))
		return
	}
	data, err := readFormFile(fileHeader)
	if err != nil {
		response.Fail(c, errors.ErrInternal.WithMessage("failed to read uploaded file").WithCause(err))
		return
	}

	meta := biz.DocumentMeta{
		DocumentType: c.PostForm("document_type"),
		PatientID:    c.PostForm("patient_id"),
		CaseNumber:   c.PostForm("case_number"),
	}

	resp, err := h.deps.Service.UploadDocument(c.Request.Context(), fileHeader.Filename, data, meta)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, resp)
}

// ListDocuments returns per-document summaries of the index.
func (h *Handler) ListDocuments(c *gin.Context) {
	docs, err := h.deps.Service.ListDocuments(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"documents": docs, "total": len(docs)})
}

// DeleteDocument removes every chunk of one document.
func (h *Handler) DeleteDocument(c *gin.Context) {
	resp, err := h.deps.Service.DeleteDocument(c.Request.Context(), c.Param("document_id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, resp)
}

// SearchKnowledge runs a manual similarity search.
func (h *Handler) SearchKnowledge(c *gin.Context) {
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailBind(c, err)
		return
	}

	resp, err := h.deps.Service.Search(c.Request.Context(), &req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, resp)
}

// Stats returns index diagnostics.
func (h *Handler) Stats(c *gin.Context) {
	response.OK(c, h.deps.Service.Stats(c.Request.Context()))
}

// Reindex drops and recreates the collection.
func (h *Handler) Reindex(c *gin.Context) {
	if err := h.deps.Service.Reindex(c.Request.Context()); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"status": "success", "message": "Collection recreated"})
}
