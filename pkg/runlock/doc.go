/*
Package runlock serializes writers of the same run.

A run's status records assume a single writer. Manager enforces it inside one process
with reference-counted mutexes and, when given a ports.DistributedLocker, across
replicas sharing the same store.
*/
package runlock
