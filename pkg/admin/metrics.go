package admin

import (
	"fmt"
	"io"

	"github.com/corviddb/pagecache/pkg/buffer"
)

// PrometheusExporter writes a BufferPoolManager's Stats in Prometheus text
// exposition format.
type PrometheusExporter struct {
	bp        *buffer.BufferPoolManager
	namespace string
}

// NewPrometheusExporter builds an exporter for bp under the given metric
// namespace (e.g. "pagecache").
func NewPrometheusExporter(bp *buffer.BufferPoolManager, namespace string) *PrometheusExporter {
	if namespace == "" {
		namespace = "pagecache"
	}
	return &PrometheusExporter{bp: bp, namespace: namespace}
}

// WriteMetrics writes every buffer pool gauge and counter to w.
func (pe *PrometheusExporter) WriteMetrics(w io.Writer) error {
	stats := pe.bp.Stats()

	if err := pe.writeGauge(w, "pool_capacity_frames", "Total frames in the buffer pool", float64(stats.Capacity)); err != nil {
		return err
	}
	if err := pe.writeGauge(w, "pool_resident_pages", "Pages currently resident in the buffer pool", float64(stats.Resident)); err != nil {
		return err
	}
	if err := pe.writeGauge(w, "pool_free_frames", "Frames on the free list", float64(stats.Free)); err != nil {
		return err
	}
	if err := pe.writeGauge(w, "replacer_evictable_frames", "Frames currently evictable by the replacer", float64(stats.ReplacerSize)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "cache_hits_total", "Total FetchPage calls served from a resident frame", uint64(stats.Hits)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "cache_misses_total", "Total FetchPage calls for a page not resident in the pool", uint64(stats.Misses)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "evictions_total", "Total frames reclaimed via the LRU-K replacer", uint64(stats.Evictions)); err != nil {
		return err
	}
	return nil
}

func (pe *PrometheusExporter) writeGauge(w io.Writer, name, help string, value float64) error {
	_, err := fmt.Fprintf(w, "# HELP %s_%s %s\n# TYPE %s_%s gauge\n%s_%s %g\n",
		pe.namespace, name, help, pe.namespace, name, pe.namespace, name, value)
	return err
}

func (pe *PrometheusExporter) writeCounter(w io.Writer, name, help string, value uint64) error {
	_, err := fmt.Fprintf(w, "# HELP %s_%s %s\n# TYPE %s_%s counter\n%s_%s %d\n",
		pe.namespace, name, help, pe.namespace, name, pe.namespace, name, value)
	return err
}
