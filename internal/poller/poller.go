package poller

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"course-racer/internal/availability"
	"course-racer/internal/metrics"
	"course-racer/internal/model"
	"course-racer/internal/protocol"
	"course-racer/internal/status"
)

// Name is the poller's label in the status view.
const Name = "catalog"

// Catalog fetches pages of the remote course catalog.
type Catalog interface {
	FetchCatalogPage(ctx context.Context, bucket string, page, pageSize int) (protocol.CatalogPage, error)
}

// Bucket is one course-type bucket to poll and the course IDs tracked within it.
type Bucket struct {
	Name    string
	Courses []string
}

// Options configures a Poller.
type Options struct {
	PageSize int
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Poller keeps the availability store in step with the remote catalog. It never gives up on a
// failed fetch; pacing comes from the rate-limited session underneath the Catalog.
type Poller struct {
	catalog  Catalog
	store    *availability.Store
	buckets  []Bucket
	pageSize int
	metrics  *metrics.Metrics
	log      *zap.Logger

	status status.Cell
}

// New creates a poller.
func New(catalog Catalog, store *availability.Store, buckets []Bucket, opts Options) *Poller {
	if opts.PageSize <= 0 {
		opts.PageSize = 500
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	p := &Poller{
		catalog:  catalog,
		store:    store,
		buckets:  buckets,
		pageSize: opts.PageSize,
		metrics:  opts.Metrics,
		log:      opts.Logger.With(zap.String("component", Name)),
	}
	p.status.Set("idle")
	return p
}

func (p *Poller) Name() string   { return Name }
func (p *Poller) Status() string { return p.status.Get() }

// Run polls every bucket in turn, forever. It returns only when ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("catalog poller started", zap.Int("buckets", len(p.buckets)))
	if len(p.buckets) == 0 {
		p.status.Set("no buckets to poll")
		<-ctx.Done()
		return ctx.Err()
	}
	for {
		for _, b := range p.buckets {
			if err := p.PollOnce(ctx, b); err != nil {
				p.log.Info("catalog poller stopped")
				return err
			}
		}
	}
}

// PollOnce fetches the whole catalog of one bucket and republishes its tracked courses.
// The only error it returns is the context's.
func (p *Poller) PollOnce(ctx context.Context, b Bucket) error {
	rows, err := p.fetchAll(ctx, b.Name)
	if err != nil {
		return err
	}

	available := make(map[string][]model.ClassRecord, len(b.Courses))
	tracked := make(map[string]bool, len(b.Courses))
	for _, id := range b.Courses {
		tracked[id] = true
	}

	records := 0
	for _, row := range rows {
		recs := row.Records()
		records += len(recs)
		if !tracked[row.Course()] {
			continue
		}
		for _, rec := range recs {
			if rec.CourseID == "" {
				rec.CourseID = row.Course()
			}
			if rec.Available() {
				available[row.Course()] = append(available[row.Course()], rec)
			}
		}
	}

	courses, classes := 0, 0
	for _, id := range b.Courses {
		list := available[id]
		p.store.Publish(id, list)
		p.metrics.SetAvailable(id, len(list))
		if len(list) > 0 {
			courses++
			classes += len(list)
		}
	}
	p.metrics.SetCatalogRecords(b.Name, records)

	p.status.Setf("%s: fetched %d records, %d courses available, %d classes available", b.Name, records, courses, classes)
	p.log.Debug("bucket published",
		zap.String("bucket", b.Name), zap.Int("records", records),
		zap.Int("courses", courses), zap.Int("classes", classes))
	return nil
}

// fetchAll walks the catalog page by page until the reported total is covered.
func (p *Poller) fetchAll(ctx context.Context, bucket string) ([]protocol.CourseRow, error) {
	var rows []protocol.CourseRow
	total := 1
	for page := 1; (page-1)*p.pageSize < total; page++ {
		resp, err := p.fetchPage(ctx, bucket, page)
		if err != nil {
			return nil, err
		}
		total = resp.Total
		rows = append(rows, resp.Rows...)
		if len(resp.Rows) == 0 {
			break
		}
	}
	return rows, nil
}

// fetchPage retries the same page until it succeeds or ctx is cancelled. Status changes only on
// failure, so the last summary stays visible while the next bucket is fetched.
func (p *Poller) fetchPage(ctx context.Context, bucket string, page int) (protocol.CatalogPage, error) {
	for attempt := 1; ; attempt++ {
		resp, err := p.catalog.FetchCatalogPage(ctx, bucket, page, p.pageSize)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return protocol.CatalogPage{}, ctxErr
		}
		p.metrics.ObserveFetch(bucket, err)
		if err == nil {
			return resp, nil
		}

		p.status.Set(fmt.Sprintf("%s: page %d failed (%v), retrying #%d", bucket, page, err, attempt))
		p.log.Warn("catalog fetch failed, retrying",
			zap.String("bucket", bucket), zap.Int("page", page), zap.Int("attempt", attempt), zap.Error(err))
	}
}
