/*
Package control implements the blocking control panel for live processes.

A Panel publishes kill, pause and play commands over the communicator and
correlates the reply, turning the broadcast protocol into plain synchronous
calls with a bounded wait.
*/
package control
