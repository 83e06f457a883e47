/*
Copyright 2024 Taqo Authors.

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

package redlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockSuccess(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "lock:spot:spot_1", "holder-1")

	mock.ExpectSetNX("lock:spot:spot_1", "holder-1", 5*time.Second).SetVal(true)

	err := locker.Lock(context.Background(), 5*time.Second)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockAlreadyHeld(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "lock:spot:spot_1", "holder-1")

	mock.ExpectSetNX("lock:spot:spot_1", "holder-1", 5*time.Second).SetVal(false)

	err := locker.Lock(context.Background(), 5*time.Second)
	assert.EqualError(t, err, "lock for key lock:spot:spot_1 is already held")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlockOnlyByHolder(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	holder := ForSpot(client, "spot_1")
	require.NoError(t, holder.Lock(context.Background(), 5*time.Second))

	intruder := ForSpot(client, "spot_1")
	assert.Error(t, intruder.Unlock(context.Background()))

	assert.NoError(t, holder.Unlock(context.Background()))
}

func TestWaitLockAcquiresAfterRelease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	first := ForSpot(client, "spot_1")
	require.NoError(t, first.Lock(context.Background(), 5*time.Second))

	done := make(chan error, 1)
	second := ForSpot(client, "spot_1")
	go func() {
		done <- second.WaitLock(context.Background(), 5*time.Second, 3*time.Second)
	}()

	time.Sleep(150 * time.Millisecond)
	require.NoError(t, first.Unlock(context.Background()))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for lock acquisition")
	}
}
