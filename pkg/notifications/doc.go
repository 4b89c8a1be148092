// Package notifications fans platform events out to users.
//
// Dispatcher.Dispatch takes an event type, a set of candidate recipients and
// a payload. It drops recipients who explicitly disabled that event type,
// persists one Notification per remaining recipient in a single transaction,
// and then hands each stored notification to a Deliverer (normally
// PubSubDeliverer, which publishes it on the recipient's notifications
// channel).
//
// Dispatch never returns an error. A failed preference lookup or insert
// turns the call into a logged no-op, and a failed delivery only affects that
// one recipient.
//
//	d := notifications.NewDispatcher(
//		notifications.NewPostgresStorage(pool),
//		notifications.NewPubSubDeliverer(bridge),
//		notifications.WithLogger(log),
//	)
//	d.Dispatch(ctx, notifications.ChangeRequestApproved, []string{requesterID}, payload,
//		notifications.WithSkillID(skillID))
//
// Preferences are a per-user map from event type to bool. A missing key
// means enabled; only an explicit false suppresses delivery.
package notifications
