// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the REST and streaming client for the chat backend.
//
// # Endpoints
//
//	GET    /api/v1/conversations                      ListConversations
//	GET    /api/v1/conversations/{id}                 GetConversation
//	POST   /api/v1/conversations                      CreateConversation
//	PUT    /api/v1/conversations/{id}                 RenameConversation
//	DELETE /api/v1/conversations/{id}                 DeleteConversation
//	DELETE /api/v1/conversations/{id}/messages/{mid}  DeleteMessage (suffix)
//	POST   /api/v1/chat/message                       SendMessage (streaming)
//	GET    /api/v1/user/me                            GetProfile
//	GET    /api/v1/config                             GetAppConfig
//	POST   /api/v1/payments/create-checkout-session   CreateCheckoutSession
//
// # Errors
//
//   - ErrUnauthenticated: no token; nothing was sent
//   - *RequestError: non-2xx status with the server's detail text;
//     errors.Is(err, ErrNotFound) for 404
//   - *NetworkError: transport failure
//
// GETs are retried with exponential backoff on transport errors and 5xx.
// Writes and the streaming send are never retried.
package api
