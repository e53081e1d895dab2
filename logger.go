/*
Copyright 2023 Alexander Bartolomey (github@alexanderbartolomey.de)

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package netflow

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
)

// The package logs through a delegating root logger: library code reads
// Log (or derives a logger from the context), while the embedding
// application injects its actual sink once via SetLogger. Until then all
// log calls are dropped by the null sink.

// SetLogger injects the logging backend used by all package code that
// did not find a logger in its context.
func SetLogger(l logr.Logger) {
	rootLog.fulfill(l.GetSink())
}

// FromContext returns the logger stored in ctx, or the package root
// logger when ctx carries none.
func FromContext(ctx context.Context, keysAndValues ...interface{}) logr.Logger {
	log := Log
	if ctx != nil {
		if logger, err := logr.FromContext(ctx); err == nil {
			log = logger
		}
	}
	return log.WithValues(keysAndValues...)
}

// IntoContext stores a logger in the returned context.
func IntoContext(ctx context.Context, l logr.Logger) context.Context {
	return logr.NewContext(ctx, l)
}

var (
	rootLog = &delegatingLogSink{logger: nullLogSink{}}

	// Log is the package root logger.
	Log = logr.New(rootLog)
)

type nullLogSink struct{}

var _ logr.LogSink = nullLogSink{}

func (nullLogSink) Init(logr.RuntimeInfo) {}

func (nullLogSink) Info(_ int, _ string, _ ...interface{}) {}

func (nullLogSink) Error(_ error, _ string, _ ...interface{}) {}

func (nullLogSink) Enabled(_ int) bool {
	return false
}

func (log nullLogSink) WithName(_ string) logr.LogSink {
	return log
}

func (log nullLogSink) WithValues(_ ...interface{}) logr.LogSink {
	return log
}

// delegatingLogSink forwards to whatever sink SetLogger installed, so
// Log itself follows a later SetLogger. Loggers derived from it through
// WithName or WithValues are bound to the sink installed at the time they
// are derived and do not follow a later SetLogger.
type delegatingLogSink struct {
	lock   sync.RWMutex
	logger logr.LogSink
	info   logr.RuntimeInfo
}

func (l *delegatingLogSink) fulfill(sink logr.LogSink) {
	if sink == nil {
		sink = nullLogSink{}
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	if withCallDepth, ok := sink.(logr.CallDepthLogSink); ok {
		sink = withCallDepth.WithCallDepth(1)
	}
	l.logger = sink
}

func (l *delegatingLogSink) Init(info logr.RuntimeInfo) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.info = info
}

func (l *delegatingLogSink) Enabled(level int) bool {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.logger.Enabled(level)
}

func (l *delegatingLogSink) Info(level int, msg string, keysAndValues ...interface{}) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	l.logger.Info(level, msg, keysAndValues...)
}

func (l *delegatingLogSink) Error(err error, msg string, keysAndValues ...interface{}) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	l.logger.Error(err, msg, keysAndValues...)
}

func (l *delegatingLogSink) WithName(name string) logr.LogSink {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.logger.WithName(name)
}

func (l *delegatingLogSink) WithValues(tags ...interface{}) logr.LogSink {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.logger.WithValues(tags...)
}
