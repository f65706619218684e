// Package transport — сетевой примитив мастера.
//
// Client.Post отправляет действие на endpoint сервера и возвращает
// либо domain.Response (success=true), либо ошибку:
//   - *ActionError — сервер ответил success=false
//   - ошибка, оборачивающая ErrTransport — сеть, HTTP или разбор ответа
//
// Таймаут запроса принадлежит клиенту, а не оркестратору.
package transport
