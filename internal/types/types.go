// Package types defines core data types and error codes for the PDF translation pipeline.
package types

import (
	"errors"
	"fmt"
)

// Boundary 区域边界，PDF 点坐标，原点在页面左上角
type Boundary struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width returns the horizontal extent of the boundary.
func (b Boundary) Width() float64 {
	return b.X2 - b.X1
}

// Height returns the vertical extent of the boundary.
func (b Boundary) Height() float64 {
	return b.Y2 - b.Y1
}

// FigTypeFigure is the only region type the figure extractor acts on.
const FigTypeFigure = "Figure"

// Region 元数据提取器输出的单个区域描述
type Region struct {
	Page           *int      `json:"page"`
	RegionBoundary *Boundary `json:"regionBoundary"`
	FigType        string    `json:"figType"`
	Name           string    `json:"name"`
	Caption        string    `json:"caption,omitempty"`
}

// IsFigure reports whether the region describes a figure.
func (r Region) IsFigure() bool {
	return r.FigType == FigTypeFigure
}

// StagingWarning 资源目录暂存失败或输出校验失败的警告
type StagingWarning struct {
	Resource string `json:"resource"`
	Message  string `json:"message"`
}

// Engine LaTeX 编译引擎
type Engine string

const (
	EnginePDFLaTeX Engine = "pdflatex"
	EngineXeLaTeX  Engine = "xelatex"
	EngineLuaLaTeX Engine = "lualatex"
)

// Valid reports whether the engine is supported by latexmk.
func (e Engine) Valid() bool {
	switch e {
	case EnginePDFLaTeX, EngineXeLaTeX, EngineLuaLaTeX:
		return true
	}
	return false
}

// CompileResult 编译结果
type CompileResult struct {
	Success   bool             `json:"success"`
	PDFPath   string           `json:"pdf_path"`
	Log       string           `json:"log"`
	PageCount int              `json:"page_count,omitempty"`
	Warnings  []StagingWarning `json:"warnings,omitempty"`
	ErrorMsg  string           `json:"error_msg,omitempty"`
}

// ErrorCode 错误代码枚举
type ErrorCode string

const (
	ErrFileNotFound         ErrorCode = "FILE_NOT_FOUND"
	ErrInvalidInput         ErrorCode = "INVALID_INPUT"
	ErrConfig               ErrorCode = "CONFIG_ERROR"
	ErrInternal             ErrorCode = "INTERNAL_ERROR"
	ErrExtraction           ErrorCode = "EXTRACTION_ERROR"
	ErrMetadataInvalid      ErrorCode = "METADATA_INVALID"
	ErrRender               ErrorCode = "RENDER_ERROR"
	ErrGeneration           ErrorCode = "GENERATION_ERROR"
	ErrGenerationTimeout    ErrorCode = "GENERATION_TIMEOUT"
	ErrMarkerNotFound       ErrorCode = "MARKER_NOT_FOUND"
	ErrCompilerNotFound     ErrorCode = "COMPILER_NOT_FOUND"
	ErrCompileOutputMissing ErrorCode = "COMPILE_OUTPUT_MISSING"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether err's chain contains an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}
