package grpc

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const catalogProtoFile = "moviedb/v1/catalog.proto"

// CatalogFile describes MovieCatalog for server reflection. It is registered
// in protoregistry.GlobalFiles under catalogProtoFile.
var CatalogFile protoreflect.FileDescriptor

func init() {
	fd, err := protodesc.NewFile(catalogFileProto(), protoregistry.GlobalFiles)
	if err != nil {
		panic("moviedb: building catalog descriptor: " + err.Error())
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic("moviedb: registering catalog descriptor: " + err.Error())
	}
	CatalogFile = fd
}

func catalogFileProto() *descriptorpb.FileDescriptorProto {
	method := func(name string, in, out proto.Message) *descriptorpb.MethodDescriptorProto {
		return &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(name),
			InputType:  proto.String("." + string(in.ProtoReflect().Descriptor().FullName())),
			OutputType: proto.String("." + string(out.ProtoReflect().Descriptor().FullName())),
		}
	}
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String(catalogProtoFile),
		Package: proto.String("moviedb.v1"),
		Syntax:  proto.String("proto3"),
		Dependency: []string{
			emptypb.File_google_protobuf_empty_proto.Path(),
			structpb.File_google_protobuf_struct_proto.Path(),
			wrapperspb.File_google_protobuf_wrappers_proto.Path(),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("MovieCatalog"),
			Method: []*descriptorpb.MethodDescriptorProto{
				method("CheckMovieExists", &wrapperspb.Int64Value{}, &wrapperspb.BoolValue{}),
				method("GetMovie", &wrapperspb.StringValue{}, &structpb.Struct{}),
				method("CountPending", &emptypb.Empty{}, &wrapperspb.Int64Value{}),
			},
		}},
	}
}
