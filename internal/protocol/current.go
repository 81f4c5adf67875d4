package protocol

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"course-racer/internal/model"
	"course-racer/internal/parse"
)

const currentSuccess = "200"

var currentTypes = map[string]model.CourseTypeCode{
	"public":      "XGKC",
	"program":     "FANKC",
	"gym":         "TYKC",
	"recommended": "TJKC",
}

// Current speaks the newer xsxk protocol: JSON catalog queries, numeric code 200 for success,
// and a signed secretVal per class that must accompany every selection.
type Current struct {
	s Session

	mu    sync.RWMutex
	round Round
}

// NewCurrent creates a current-protocol adapter.
func NewCurrent(s Session) *Current {
	return &Current{s: s}
}

type currentEnvelope struct {
	Code parse.Scalar `json:"code"`
	Msg  string       `json:"msg"`
}

func (e currentEnvelope) err() error {
	if e.Code.Is(currentSuccess) {
		return nil
	}
	return &RemoteError{Code: e.Code.String(), Message: e.Msg}
}

type currentClass struct {
	KCH       string       `json:"KCH"`
	JXBID     string       `json:"JXBID"`
	SFYM      parse.Scalar `json:"SFYM"`
	SFCT      parse.Scalar `json:"SFCT"`
	SecretVal string       `json:"secretVal"`
}

func (c currentClass) record(courseID string) model.ClassRecord {
	if c.KCH != "" {
		courseID = c.KCH
	}
	return model.ClassRecord{
		CourseID: courseID,
		ClassID:  c.JXBID,
		Full:     !c.SFYM.Unset(),
		Conflict: !c.SFCT.Unset(),
		Secret:   c.SecretVal,
	}
}

type currentCourseRow struct {
	currentClass
	TcList *[]currentClass `json:"tcList"`
}

func (r currentCourseRow) row() CourseRow {
	if r.TcList == nil {
		return SingleClass{Record: r.record("")}
	}
	group := ClassGroup{CourseID: r.KCH, Classes: make([]model.ClassRecord, 0, len(*r.TcList))}
	for _, c := range *r.TcList {
		group.Classes = append(group.Classes, c.record(r.KCH))
	}
	return group
}

func (c *Current) Name() string      { return "current" }
func (c *Current) Buckets() []string { return sortedKeys(currentTypes) }

func (c *Current) TypeCode(bucket string) (model.CourseTypeCode, bool) {
	code, ok := currentTypes[bucket]
	return code, ok
}

// Login posts the credentials and installs the returned bearer token.
func (c *Current) Login(ctx context.Context, username, password string) error {
	var resp struct {
		currentEnvelope
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	form := url.Values{"loginname": {username}, "password": {password}}
	if err := c.s.PostForm(ctx, "/auth/login", form, &resp); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := resp.err(); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	c.Authorize(resp.Data.Token)
	return nil
}

func (c *Current) Authorize(token string) {
	c.s.SetHeader("Authorization", token)
}

// LoadRound reads the student's campus and first selectable batch, and pins the batch on the
// session since every later call must name it.
func (c *Current) LoadRound(ctx context.Context) (Round, error) {
	var resp struct {
		currentEnvelope
		Data struct {
			Student struct {
				Campus            string  `json:"campus"`
				ElectiveBatchList []batch `json:"electiveBatchList"`
			} `json:"student"`
		} `json:"data"`
	}
	if err := c.s.Get(ctx, "/elective/user", nil, &resp); err != nil {
		return Round{}, fmt.Errorf("failed to load student info: %w", err)
	}
	if err := resp.err(); err != nil {
		return Round{}, fmt.Errorf("failed to load student info: %w", err)
	}

	round, err := pickRound(resp.Data.Student.ElectiveBatchList, resp.Data.Student.Campus)
	if err != nil {
		return Round{}, err
	}
	c.s.SetHeader("batchId", round.Code)
	c.mu.Lock()
	c.round = round
	c.mu.Unlock()
	return round, nil
}

// FetchCatalogPage queries /elective/clazz/list with a 1-based page number.
func (c *Current) FetchCatalogPage(ctx context.Context, bucket string, page, pageSize int) (CatalogPage, error) {
	code, ok := c.TypeCode(bucket)
	if !ok {
		return CatalogPage{}, fmt.Errorf("unknown bucket %q", bucket)
	}
	c.mu.RLock()
	campus := c.round.Campus
	c.mu.RUnlock()

	body := map[string]any{
		"teachingClassType": string(code),
		"pageNumber":        page,
		"pageSize":          pageSize,
		"orderBy":           "",
		"campus":            campus,
	}
	var resp struct {
		currentEnvelope
		Data struct {
			Total parse.Scalar       `json:"total"`
			Rows  []currentCourseRow `json:"rows"`
		} `json:"data"`
	}
	if err := c.s.PostJSON(ctx, "/elective/clazz/list", body, &resp); err != nil {
		return CatalogPage{}, err
	}
	if err := resp.err(); err != nil {
		return CatalogPage{}, err
	}

	total, err := resp.Data.Total.Int()
	if err != nil {
		return CatalogPage{}, err
	}
	out := CatalogPage{Total: total, Rows: make([]CourseRow, 0, len(resp.Data.Rows))}
	for _, r := range resp.Data.Rows {
		out.Rows = append(out.Rows, r.row())
	}
	return out, nil
}

// Select adds the class, presenting its signed secret.
func (c *Current) Select(ctx context.Context, code model.CourseTypeCode, rec model.ClassRecord) (model.Outcome, error) {
	return c.submit(ctx, "/elective/clazz/add", code, rec)
}

// Drop removes a previously added class.
func (c *Current) Drop(ctx context.Context, code model.CourseTypeCode, rec model.ClassRecord) (model.Outcome, error) {
	return c.submit(ctx, "/elective/clazz/del", code, rec)
}

func (c *Current) submit(ctx context.Context, path string, code model.CourseTypeCode, rec model.ClassRecord) (model.Outcome, error) {
	form := url.Values{
		"clazzType": {string(code)},
		"clazzId":   {rec.ClassID},
		"secretVal": {rec.Secret},
	}
	var resp currentEnvelope
	if err := c.s.PostForm(ctx, path, form, &resp); err != nil {
		return model.Outcome{}, err
	}
	return model.Outcome{Success: resp.Code.Is(currentSuccess), Message: resp.Msg}, nil
}
