// Package push delivers push notifications to user devices.
//
// OneSignalClient posts to the OneSignal REST API (POST /notifications) with
// include_player_ids fan-out over every registered device of a user. HTTP is
// handled by go-resty; retries are left to the caller so retry accounting stays
// in one place.
//
// LogSender only logs what would have been sent and is used when no provider
// credentials are configured.
package push
