// Package enforcer executes moderation decisions made by an upstream review process.
//
// A decision names a target entity (account, content item, collection or review) and an outcome. The
// action package maps each outcome onto one Action variant which applies the state transition at most
// once, the notify package tells owners and reporters what happened, and the engine package strings those steps
// together for a stored decision.
//
// Collaborators are injected: the entity store and audit log (store), feature gates (gate), mail
// delivery (mailer) and appeal URL building (siteurl).
package enforcer
