// Package recurrence contains the building blocks of the synchronization
// likelihood scan that do not depend on the recording itself: the
// Theiler-excluded neighbour window, the adaptive threshold search and the
// recurrence bit masks that the likelihood estimators reduce.
package recurrence
