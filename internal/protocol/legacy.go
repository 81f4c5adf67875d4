package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"course-racer/internal/model"
	"course-racer/internal/parse"
)

const legacySuccess = "1"

var legacyTypes = map[string]model.CourseTypeCode{
	"public":      "XGXK",
	"program":     "FANKC",
	"gym":         "TYKC",
	"recommended": "TJKC",
}

// Legacy speaks the older xsxkapp protocol: form fields carrying JSON documents, string code "1"
// for success, and course rows under dataList.
type Legacy struct {
	s        Session
	username string

	mu    sync.RWMutex
	round Round
}

// NewLegacy creates a legacy adapter for the given student.
func NewLegacy(s Session, username string) *Legacy {
	return &Legacy{s: s, username: username}
}

type legacyEnvelope struct {
	Code parse.Scalar `json:"code"`
	Msg  string       `json:"msg"`
}

func (e legacyEnvelope) err() error {
	if e.Code.Is(legacySuccess) {
		return nil
	}
	return &RemoteError{Code: e.Code.String(), Message: e.Msg}
}

type legacyClass struct {
	CourseNumber    string       `json:"courseNumber"`
	TeachingClassID string       `json:"teachingClassID"`
	IsFull          parse.Scalar `json:"isFull"`
	IsConflict      parse.Scalar `json:"isConflict"`
}

func (c legacyClass) record(courseID string) model.ClassRecord {
	if c.CourseNumber != "" {
		courseID = c.CourseNumber
	}
	return model.ClassRecord{
		CourseID: courseID,
		ClassID:  c.TeachingClassID,
		Full:     !c.IsFull.Unset(),
		Conflict: !c.IsConflict.Unset(),
	}
}

type legacyCourseRow struct {
	legacyClass
	TcList *[]legacyClass `json:"tcList"`
}

func (r legacyCourseRow) row() CourseRow {
	if r.TcList == nil {
		return SingleClass{Record: r.record("")}
	}
	group := ClassGroup{CourseID: r.CourseNumber, Classes: make([]model.ClassRecord, 0, len(*r.TcList))}
	for _, c := range *r.TcList {
		group.Classes = append(group.Classes, c.record(r.CourseNumber))
	}
	return group
}

func (l *Legacy) Name() string      { return "legacy" }
func (l *Legacy) Buckets() []string { return sortedKeys(legacyTypes) }

func (l *Legacy) TypeCode(bucket string) (model.CourseTypeCode, bool) {
	code, ok := legacyTypes[bucket]
	return code, ok
}

// Login posts the credentials and installs the returned token.
func (l *Legacy) Login(ctx context.Context, username, password string) error {
	var resp struct {
		legacyEnvelope
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	form := url.Values{"loginName": {username}, "loginPwd": {password}}
	if err := l.s.PostForm(ctx, "/student/check/login.do", form, &resp); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := resp.err(); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	l.Authorize(resp.Data.Token)
	return nil
}

func (l *Legacy) Authorize(token string) {
	l.s.SetHeader("token", token)
}

// LoadRound reads the student's campus and the first selectable elective batch.
func (l *Legacy) LoadRound(ctx context.Context) (Round, error) {
	var resp struct {
		legacyEnvelope
		Data struct {
			Campus            string  `json:"campus"`
			ElectiveBatchList []batch `json:"electiveBatchList"`
		} `json:"data"`
	}
	params := url.Values{"timestamp": {strconv.FormatInt(time.Now().UnixMilli(), 10)}}
	if err := l.s.Get(ctx, "/student/"+url.PathEscape(l.username)+".do", params, &resp); err != nil {
		return Round{}, fmt.Errorf("failed to load student info: %w", err)
	}
	if err := resp.err(); err != nil {
		return Round{}, fmt.Errorf("failed to load student info: %w", err)
	}

	round, err := pickRound(resp.Data.ElectiveBatchList, resp.Data.Campus)
	if err != nil {
		return Round{}, err
	}
	l.mu.Lock()
	l.round = round
	l.mu.Unlock()
	return round, nil
}

func (l *Legacy) currentRound() Round {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.round
}

// FetchCatalogPage queries /elective/{bucket}Course.do. The remote numbers pages from zero.
func (l *Legacy) FetchCatalogPage(ctx context.Context, bucket string, page, pageSize int) (CatalogPage, error) {
	code, ok := l.TypeCode(bucket)
	if !ok {
		return CatalogPage{}, fmt.Errorf("unknown bucket %q", bucket)
	}
	round := l.currentRound()
	setting, err := json.Marshal(map[string]any{
		"data": map[string]string{
			"studentCode":       l.username,
			"campus":            round.Campus,
			"electiveBatchCode": round.Code,
			"isMajor":           "1",
			"teachingClassType": string(code),
			"checkConflict":     "2",
			"checkCapacity":     "2",
			"queryContent":      "",
		},
		"pageSize":   strconv.Itoa(pageSize),
		"pageNumber": strconv.Itoa(page - 1),
		"order":      "null",
	})
	if err != nil {
		return CatalogPage{}, fmt.Errorf("failed to marshal query setting: %w", err)
	}

	var resp struct {
		legacyEnvelope
		TotalCount parse.Scalar      `json:"totalCount"`
		DataList   []legacyCourseRow `json:"dataList"`
	}
	if err := l.s.PostForm(ctx, "/elective/"+bucket+"Course.do", url.Values{"querySetting": {string(setting)}}, &resp); err != nil {
		return CatalogPage{}, err
	}
	if err := resp.err(); err != nil {
		return CatalogPage{}, err
	}

	total, err := resp.TotalCount.Int()
	if err != nil {
		return CatalogPage{}, err
	}
	out := CatalogPage{Total: total, Rows: make([]CourseRow, 0, len(resp.DataList))}
	for _, r := range resp.DataList {
		out.Rows = append(out.Rows, r.row())
	}
	return out, nil
}

// Select volunteers the student for a teaching class.
func (l *Legacy) Select(ctx context.Context, code model.CourseTypeCode, rec model.ClassRecord) (model.Outcome, error) {
	round := l.currentRound()
	return l.submit(ctx, "/elective/volunteer.do", "addParam", map[string]string{
		"operationType":     "1",
		"studentCode":       l.username,
		"electiveBatchCode": round.Code,
		"teachingClassId":   rec.ClassID,
		"isMajor":           "1",
		"campus":            round.Campus,
		"teachingClassType": string(code),
	})
}

// Drop withdraws a previous selection.
func (l *Legacy) Drop(ctx context.Context, _ model.CourseTypeCode, rec model.ClassRecord) (model.Outcome, error) {
	round := l.currentRound()
	return l.submit(ctx, "/elective/deleteVolunteer.do", "deleteParam", map[string]string{
		"operationType":     "2",
		"studentCode":       l.username,
		"electiveBatchCode": round.Code,
		"teachingClassId":   rec.ClassID,
		"isMajor":           "1",
	})
}

func (l *Legacy) submit(ctx context.Context, path, field string, data map[string]string) (model.Outcome, error) {
	param, err := json.Marshal(map[string]any{"data": data})
	if err != nil {
		return model.Outcome{}, fmt.Errorf("failed to marshal %s: %w", field, err)
	}
	var resp legacyEnvelope
	if err := l.s.PostForm(ctx, path, url.Values{field: {string(param)}}, &resp); err != nil {
		return model.Outcome{}, err
	}
	return model.Outcome{Success: resp.Code.Is(legacySuccess), Message: resp.Msg}, nil
}
