package main

import (
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	upErr  error
	steps  []int
	forced []int
}

func (f *fakeMigrator) Up() error { return f.upErr }

func (f *fakeMigrator) Steps(n int) error {
	f.steps = append(f.steps, n)
	return nil
}

func (f *fakeMigrator) Force(version int) error {
	f.forced = append(f.forced, version)
	return nil
}

func TestRunDefaultsToUp(t *testing.T) {
	m := &fakeMigrator{upErr: migrate.ErrNoChange}
	require.NoError(t, run(m, nil))
}

func TestRunDownAndForce(t *testing.T) {
	m := &fakeMigrator{}
	require.NoError(t, run(m, []string{"down", "2"}))
	require.NoError(t, run(m, []string{"force", "3"}))
	assert.Equal(t, []int{-2}, m.steps)
	assert.Equal(t, []int{3}, m.forced)
}

func TestRunRejectsBadArgs(t *testing.T) {
	m := &fakeMigrator{}
	cases := [][]string{
		{"down"},
		{"down", "0"},
		{"force", "x"},
		{"sideways"},
	}
	for _, args := range cases {
		assert.Error(t, run(m, args), "args %v", args)
	}
	assert.Empty(t, m.steps)
	assert.Empty(t, m.forced)
}
