package mxf

import "errors"

var (
	errUsesHMACWithoutEncryption = errors.New("mxf: WriterInfo.UsesHMAC requires EncryptedEssence")
	errRIPNotThreePartitions     = errors.New("mxf: locating a separate body partition requires a header/body/footer RIP")
	errNoFooterOffset            = errors.New("mxf: header partition did not record a footer offset")
)
