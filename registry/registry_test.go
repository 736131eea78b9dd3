package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecdb/vecdb/collection"
)

func TestCreateDropList(t *testing.T) {
	r := New()

	_, err := r.Create("docs", 3)
	require.NoError(t, err)

	_, err = r.Create("docs", 3)
	require.ErrorIs(t, err, ErrAlreadyExists)

	_, err = r.Create("images", 8)
	require.NoError(t, err)

	assert.Equal(t, []string{"docs", "images"}, r.List())

	require.NoError(t, r.Drop("docs"))
	assert.Equal(t, []string{"images"}, r.List())

	err = r.Drop("docs")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetMissing(t *testing.T) {
	r := New()
	_, err := r.Get("nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentLeasesOnDifferentCollectionsDoNotBlock(t *testing.T) {
	r := New()
	_, err := r.Create("a", 2)
	require.NoError(t, err)
	_, err = r.Create("b", 2)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)

	start := make(chan struct{})
	go func() {
		defer wg.Done()
		<-start
		_ = r.WithCollection("a", func(c *collection.Collection) error {
			return c.Upsert("1", []float32{1, 1}, nil)
		})
	}()
	go func() {
		defer wg.Done()
		<-start
		_ = r.WithCollection("b", func(c *collection.Collection) error {
			return c.Upsert("1", []float32{2, 2}, nil)
		})
	}()
	close(start)
	wg.Wait()
}
