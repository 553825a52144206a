package devmatch

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	svcErr "github.com/oggyb/devmatch/internal/errors"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "devmatch.v1.DevMatch"

// Server is the handler type of ServiceDesc; only *Service implements it.
type Server interface {
	devmatchServer()
}

// ServiceDesc describes DevMatch. Every request and response is a
// google.protobuf.Struct whose fields are the snake_case JSON of the
// request/view types in this package.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		unary("LoadDeck", (*Service).LoadDeck),
		unary("Like", (*Service).Like),
		unary("Pass", (*Service).Pass),
		unary("AcceptMatch", (*Service).AcceptMatch),
		unary("RejectMatch", (*Service).RejectMatch),
		unary("ListMatches", (*Service).ListMatches),
		unary("Stats", (*Service).Stats),
		unary("ListLikers", (*Service).ListLikers),
		unary("ListNotifications", (*Service).ListNotifications),
		unary("MarkNotificationRead", (*Service).MarkNotificationRead),
		unary("MarkAllNotificationsRead", (*Service).MarkAllNotificationsRead),
		unary("RemoveNotification", (*Service).RemoveNotification),
		unary("ClearNotifications", (*Service).ClearNotifications),
		unary("DismissToast", (*Service).DismissToast),
		unary("ClearToasts", (*Service).ClearToasts),
		unary("Mute", (*Service).Mute),
		unary("Unmute", (*Service).Unmute),
		unary("Block", (*Service).Block),
		unary("Unblock", (*Service).Unblock),
		unary("PrivacyLists", (*Service).PrivacyLists),
		unary("PrivacyStatus", (*Service).PrivacyStatus),
		unary("SubmitReport", (*Service).SubmitReport),
		unary("ReportCategories", (*Service).ReportCategories),
		unary("ReportHistory", (*Service).ReportHistory),
		unary("ListChats", (*Service).ListChats),
		unary("ListMessages", (*Service).ListMessages),
		unary("SendMessage", (*Service).SendMessage),
		unary("ListActivity", (*Service).ListActivity),
		unary("ClearActivity", (*Service).ClearActivity),
		unary("GetProfile", (*Service).GetProfile),
		unary("UpdateProfile", (*Service).UpdateProfile),
		unary("Register", (*Service).Register),
		unary("Login", (*Service).Login),
		unary("CurrentUser", (*Service).CurrentUser),
		unary("Logout", (*Service).Logout),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchToasts",
			Handler:       watchToastsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "devmatch/v1/devmatch.proto",
}

// owned is implemented by requests made on behalf of a user.
type owned interface {
	owner() string
}

// unary adapts a typed method to a grpc.MethodDesc: Struct → Req, call,
// Resp → Struct. Errors leave through svcErr.Map.
func unary[Req any, Resp any](name string, call func(*Service, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*Service)
			handler := func(ctx context.Context, raw any) (any, error) {
				req := new(Req)
				if err := decode(raw.(*structpb.Struct), req); err != nil {
					return nil, err
				}
				if o, ok := any(req).(owned); ok {
					if err := s.authorize(ctx, o.owner()); err != nil {
						return nil, err
					}
				}
				resp, err := call(s, ctx, req)
				if err != nil {
					return nil, svcErr.Map(err)
				}
				return encode(resp)
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchToastsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	req := new(userRequest)
	if err := decode(in, req); err != nil {
		return err
	}
	s := srv.(*Service)
	if err := s.authorize(stream.Context(), req.owner()); err != nil {
		return err
	}
	return svcErr.Map(s.WatchToasts(stream.Context(), req, func(v toastView) error {
		out, err := encode(v)
		if err != nil {
			return err
		}
		return stream.SendMsg(out)
	}))
}

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode maps a Struct onto a request type and validates it.
func decode(in *structpb.Struct, out any) error {
	raw, err := json.Marshal(in.AsMap())
	if err != nil {
		return svcErr.InvalidArgument("malformed request")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return svcErr.InvalidArgument("malformed request: " + err.Error())
	}
	if err := validate.Struct(out); err != nil {
		return svcErr.InvalidArgument(describe(err))
	}
	return nil
}

// encode turns a response type into a Struct through its JSON form.
func encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+" failed "+fe.Tag())
	}
	return "invalid request: " + strings.Join(parts, ", ")
}
