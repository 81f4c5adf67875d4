package protocol

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"

	"course-racer/internal/model"
)

var (
	// ErrNoOpenRound means no enrollment round is currently selectable.
	ErrNoOpenRound = errors.New("no open enrollment round")
	// ErrRemote marks a well-formed response carrying a non-success code.
	ErrRemote = errors.New("remote rejected request")
	// ErrUnknownProtocol is returned by New for an unsupported protocol name.
	ErrUnknownProtocol = errors.New("unknown protocol")
)

// RemoteError carries the code and message of a rejected request.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote code %s: %s", e.Code, e.Message)
}

// Is lets errors.Is(err, ErrRemote) match any RemoteError.
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}

// Session is the subset of the HTTP session the adapters need.
type Session interface {
	Get(ctx context.Context, path string, params url.Values, out any) error
	PostForm(ctx context.Context, path string, form url.Values, out any) error
	PostJSON(ctx context.Context, path string, body any, out any) error
	SetHeader(key, value string)
}

// Round is the administratively opened enrollment window the student may select in.
type Round struct {
	Code   string
	Name   string
	Campus string
}

// CatalogPage is one page of the remote course catalog.
type CatalogPage struct {
	Total int
	Rows  []CourseRow
}

// CourseRow is one catalog row: either a ClassGroup or a SingleClass.
type CourseRow interface {
	Course() string
	Records() []model.ClassRecord
	isCourseRow()
}

// ClassGroup is a course row that embeds its sections.
type ClassGroup struct {
	CourseID string
	Classes  []model.ClassRecord
}

func (g ClassGroup) Course() string               { return g.CourseID }
func (g ClassGroup) Records() []model.ClassRecord { return g.Classes }
func (ClassGroup) isCourseRow()                   {}

// SingleClass is a course row that is itself the only section.
type SingleClass struct {
	Record model.ClassRecord
}

func (s SingleClass) Course() string               { return s.Record.CourseID }
func (s SingleClass) Records() []model.ClassRecord { return []model.ClassRecord{s.Record} }
func (SingleClass) isCourseRow()                   {}

// Adapter speaks one variant of the remote selection protocol. The scheduling core only
// depends on this interface, so protocol variants differ in field names and endpoints only.
type Adapter interface {
	Name() string
	// Buckets lists the configuration bucket names this protocol understands.
	Buckets() []string
	TypeCode(bucket string) (model.CourseTypeCode, bool)

	Login(ctx context.Context, username, password string) error
	// Authorize installs a pre-issued token instead of logging in.
	Authorize(token string)
	LoadRound(ctx context.Context) (Round, error)

	// FetchCatalogPage fetches a 1-based page of the bucket's catalog.
	FetchCatalogPage(ctx context.Context, bucket string, page, pageSize int) (CatalogPage, error)
	Select(ctx context.Context, code model.CourseTypeCode, rec model.ClassRecord) (model.Outcome, error)
	Drop(ctx context.Context, code model.CourseTypeCode, rec model.ClassRecord) (model.Outcome, error)
}

// New returns the adapter for the named protocol variant.
func New(name string, s Session, username string) (Adapter, error) {
	switch name {
	case "legacy":
		return NewLegacy(s, username), nil
	case "current", "":
		return NewCurrent(s), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, name)
}

// DefaultBaseURL is where each protocol variant is served when no base URL is configured.
func DefaultBaseURL(name string) string {
	if name == "legacy" {
		return "http://xk.xidian.edu.cn/xsxkapp/sys/xsxkapp"
	}
	return "https://xk.xidian.edu.cn/xsxk"
}

type batch struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	CanSelect string `json:"canSelect"`
}

// pickRound returns the first batch open for selection.
func pickRound(batches []batch, campus string) (Round, error) {
	for _, b := range batches {
		if b.CanSelect == "1" {
			return Round{Code: b.Code, Name: b.Name, Campus: campus}, nil
		}
	}
	return Round{}, ErrNoOpenRound
}

func sortedKeys(m map[string]model.CourseTypeCode) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
