// Package service implements server-side room services whose state is
// mirrored to client proxies.
//
// A service type is defined once on a Registry, before any instance exists.
// The definition collects the type's default socket events, its mirrored
// properties and its proxy-callable methods:
//
//	var (
//		services    = service.NewRegistry()
//		lobbyType   = service.MustDefine[*Lobby](services, "Lobby")
//		playerCount = service.MustMirror(lobbyType, "playerCount", 0)
//	)
//
//	type Lobby struct{ *service.Service }
//
//	func NewLobby() *Lobby {
//		l := &Lobby{}
//		l.Service = lobbyType.New(l)
//		return l
//	}
//
//	func (l *Lobby) PlayerCount() int     { return playerCount.Get(l.Service) }
//	func (l *Lobby) SetPlayerCount(n int) { playerCount.Set(l.Service, n) }
//
// When a connection joins, ConnectToRoom wires the type's events onto it,
// runs the optional ConnectionInitializer hook and replays every mirrored
// property to that connection alone. Writes through a Mirrored accessor are
// broadcast to the bound room.
package service
