package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/runnables/internal/app/catalog"
	"github.com/slok/runnables/internal/inventory/memory"
	"github.com/slok/runnables/internal/log"
	"github.com/slok/runnables/internal/model"
)

type scheduled map[string]bool

func (s scheduled) WasScheduled(name string) bool { return s[name] }

func TestServiceList(t *testing.T) {
	runnables := []model.Runnable{
		{Name: "build", Label: "Build binaries", Command: "make"},
		{Name: "test", Label: "Unit tests", Command: "go"},
		{Name: "lint", Command: "golangci-lint"},
	}

	tests := map[string]struct {
		scheduled catalog.ScheduleChecker
		req       catalog.Request
		expNames  []string
		expSched  []bool
	}{
		"Without filters all the runnables should be listed in order.": {
			req:      catalog.Request{},
			expNames: []string{"build", "test", "lint"},
			expSched: []bool{false, false, false},
		},

		"A query should match the label case insensitive.": {
			req:      catalog.Request{Query: "UNIT"},
			expNames: []string{"test"},
			expSched: []bool{false},
		},

		"A query should match the name.": {
			req:      catalog.Request{Query: "lin"},
			expNames: []string{"lint"},
			expSched: []bool{false},
		},

		"A query without matches should return nothing.": {
			req:      catalog.Request{Query: "deploy"},
			expNames: []string{},
			expSched: []bool{},
		},

		"Scheduled runnables should be marked.": {
			scheduled: scheduled{"test": true},
			req:       catalog.Request{},
			expNames:  []string{"build", "test", "lint"},
			expSched:  []bool{false, true, false},
		},

		"Scheduled runnables should be hidden if requested.": {
			scheduled: scheduled{"test": true},
			req:       catalog.Request{HideScheduled: true},
			expNames:  []string{"build", "lint"},
			expSched:  []bool{false, false},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			inv, err := memory.NewRepository(runnables)
			require.NoError(err)

			svc, err := catalog.NewService(catalog.ServiceConfig{
				Inventory: inv,
				Scheduled: test.scheduled,
				Logger:    log.Noop,
			})
			require.NoError(err)

			entries, err := svc.List(context.Background(), test.req)
			require.NoError(err)

			names := []string{}
			sched := []bool{}
			for _, e := range entries {
				names = append(names, e.Runnable.Name)
				sched = append(sched, e.Scheduled)
			}
			assert.Equal(test.expNames, names)
			assert.Equal(test.expSched, sched)
		})
	}
}

func TestNewServiceRequiresInventory(t *testing.T) {
	_, err := catalog.NewService(catalog.ServiceConfig{})
	assert.Error(t, err)
}
