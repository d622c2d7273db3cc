/*
Package session serialises concurrent work on the same project.

Two messages sent to one project at the same time would otherwise both seed a
state from the same history and persist conflicting replies. The Manager
queues them on a per-project mutex and, when a DistributedLocker is
configured, on a lock shared by every replica.
*/
package session
