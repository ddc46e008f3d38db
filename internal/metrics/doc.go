// Package metrics records build and stage metrics.
//
// Components receive a Recorder through dependency injection and default to NoopRecorder,
// so metrics collection never requires nil checks:
//
//	svc := build.NewService(cfg) // NoopRecorder
//	svc.WithRecorder(metrics.NewPrometheusRecorder(reg, "pkgbuilder"))
//
// A one-shot CLI build has no scrape endpoint; WriteTextfile dumps the registry in the
// node_exporter textfile format instead.
package metrics
