// Package sweeper enforces subscription expiry in the background. Each
// pass claims lapsed subscriptions with a conditional update, revokes
// the credentials of their users, retires orphaned credentials a
// previous pass missed, and marks subscriptions entering the warning
// window. Overlapping passes are safe: the claim is the lock.
package sweeper
