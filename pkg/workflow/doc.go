/*
Package workflow implements workflow tree orchestration and reporting.

It provides high-level operations over workflow trees (step bookkeeping,
calculation and sub-workflow attachment, kill cascades, subtree listings)
while enforcing a single writer per tree, integrating local lock reference
counting with optional distributed locking and the persistence ports.
*/
package workflow
