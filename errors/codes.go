package errors

// Code is a storage engine error code. Codes are grouped by hundreds the
// way the engine groups them: crypto, volume, transaction, file system,
// access, repository.
type Code int32

const (
	CodeOK Code = 0

	CodeRefOverflow  Code = 1000
	CodeRefUnderflow Code = 1001

	CodeInitCrypto    Code = 1010
	CodeHashing       Code = 1012
	CodeInvalidCost   Code = 1013
	CodeInvalidCipher Code = 1014
	CodeEncrypt       Code = 1015
	CodeDecrypt       Code = 1016

	CodeInvalidUri      Code = 1020
	CodeInvalidSuperBlk Code = 1021
	CodeCorrupted       Code = 1022
	CodeOpened          Code = 1023
	CodeWrongVersion    Code = 1024
	CodeNoEntity        Code = 1025

	CodeInTrans    Code = 1031
	CodeNoTrans    Code = 1032
	CodeUncomplete Code = 1033
	CodeInUse      Code = 1034

	CodeNoContent Code = 1040

	CodeInvalidArgument Code = 1050
	CodeInvalidPath     Code = 1051
	CodeNotFound        Code = 1052
	CodeAlreadyExists   Code = 1053
	CodeIsRoot          Code = 1054
	CodeIsDir           Code = 1055
	CodeIsFile          Code = 1056
	CodeNotDir          Code = 1057
	CodeNotFile         Code = 1058
	CodeNotEmpty        Code = 1059
	CodeNoVersion       Code = 1060

	CodeReadOnly    Code = 1070
	CodeCannotRead  Code = 1071
	CodeCannotWrite Code = 1072
	CodeNotWrite    Code = 1073
	CodeNotFinish   Code = 1074
	CodeClosed      Code = 1075

	CodeRepoOpened Code = 1080
	CodeRepoClosed Code = 1081
	CodeRepoExists Code = 1082

	CodeOutOfMemory Code = 1090

	CodeIo      Code = 2003
	CodeUnknown Code = 9999
)

var descriptions = map[Code]string{
	CodeOK:              "Success",
	CodeRefOverflow:     "Refcnt overflow",
	CodeRefUnderflow:    "Refcnt underflow",
	CodeInitCrypto:      "Initialise crypto failed",
	CodeHashing:         "Hashing failed",
	CodeInvalidCost:     "Invalid cost",
	CodeInvalidCipher:   "Invalid cipher",
	CodeEncrypt:         "Encrypt failed",
	CodeDecrypt:         "Decrypt failed",
	CodeInvalidUri:      "Invalid Uri",
	CodeInvalidSuperBlk: "Invalid super block",
	CodeCorrupted:       "Volume corrupted",
	CodeOpened:          "Volume is opened",
	CodeWrongVersion:    "Version not match",
	CodeNoEntity:        "Entity not found",
	CodeInTrans:         "Entity is in transaction",
	CodeNoTrans:         "Not in transaction",
	CodeUncomplete:      "Transaction uncompleted",
	CodeInUse:           "Entity is in use",
	CodeNoContent:       "Content not found",
	CodeInvalidArgument: "Invalid argument",
	CodeInvalidPath:     "Invalid path",
	CodeNotFound:        "File not found",
	CodeAlreadyExists:   "File already exists",
	CodeIsRoot:          "File is root",
	CodeIsDir:           "Is a directory",
	CodeIsFile:          "Is a file",
	CodeNotDir:          "Not a directory",
	CodeNotFile:         "Not a file",
	CodeNotEmpty:        "Directory not empty",
	CodeNoVersion:       "File has no version",
	CodeReadOnly:        "Opened as read only",
	CodeCannotRead:      "Cannot read file",
	CodeCannotWrite:     "Cannot write file",
	CodeNotWrite:        "File is not in writing",
	CodeNotFinish:       "File is not finished",
	CodeClosed:          "File is closed",
	CodeRepoOpened:      "Repo is opened",
	CodeRepoClosed:      "Repo is closed",
	CodeRepoExists:      "Repo already exists",
	CodeOutOfMemory:     "Out of memory",
	CodeIo:              "IO error",
	CodeUnknown:         "Unknown error",
}

// Description returns the engine's text for the code.
func (c Code) Description() string {
	if d, ok := descriptions[c]; ok {
		return d
	}
	return descriptions[CodeUnknown]
}

// Known reports whether c is a code the engine defines.
func (c Code) Known() bool {
	_, ok := descriptions[c]
	return ok && c != CodeOK
}
