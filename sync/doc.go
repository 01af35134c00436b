// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package sync implements synchronization primitives, which live in shared memory
// and work across process boundaries: a mutex and a counting semaphore.
// Both are placed in caller-provided uint32 cells and need no names or
// kernel objects of their own. On linux waiting is done with futexes.
package sync
