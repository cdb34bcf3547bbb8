// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package reliability provides reception awareness for outbound AS4 messages.

A Tracker follows each sent user message through its attempts and
correlates returned signals with it by RefToMessageId. It also remembers
signal message ids for a window so a replayed acknowledgement can be
flagged.

	tracker := reliability.NewTracker(24 * time.Hour)
	tracker.Track(messageID)
	tracker.MarkSending(messageID)
	...
	if tracker.SeenSignal(signal.MessageID) {
	    // replayed signal
	}
	tracker.RecordSignal(signal.RefToMessageID, signal.MessageID, signal.IsReceipt(), codes)

Retry counts and intervals come from the P-Mode (ReceptionAwareness.Retry)
and are enforced by the transport.

# References

  - OASIS AS4 Reception Awareness: https://docs.oasis-open.org/ebxml-msg/ebms/v3.0/profiles/AS4-profile/v1.0/
*/
package reliability
